package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds weaver CLI configuration. Priority: env vars > settings.json
// > defaults.
type Config struct {
	DBPath   string `json:"db_path"`
	LogLevel string `json:"log_level"`
}

func defaultConfig() Config {
	return Config{
		DBPath:   filepath.Join(weaverDir(), "cache.db"),
		LogLevel: "info",
	}
}

func weaverDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weaver"
	}
	return filepath.Join(home, ".weaver")
}

func settingsPath() string {
	return filepath.Join(weaverDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("WEAVER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("WEAVER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}
