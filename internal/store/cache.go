// Package store adapts the teacher's libsql-backed persistence layer into a
// single-purpose compiled-WSpec cache. It sits outside the compiler and
// executor core: neither package imports it, only cmd/weaver and pkg/mcp do,
// so a cache miss, a corrupt cache file, or skipping the cache entirely never
// changes what Compile or Execute produce.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/weaver/internal/model"
	"github.com/rendis/weaver/pkg/schema"
)

const createTableDDL = `
CREATE TABLE IF NOT EXISTS compiled_specs (
	content_hash TEXT PRIMARY KEY,
	wspec_json   TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// WSpecCache is a content-addressed cache of compiled WeaverSpecs, keyed by
// a caller-supplied hash: ContentHash covers the SDD alone, while pkg/mcp
// keys by a hash of the whole compile request.
type WSpecCache struct {
	db *sql.DB
}

// NewWSpecCache opens (creating if needed) a libSQL database at dbPath and
// prepares it to serve as a WSpec cache. dbPath follows the libsql driver's
// own conventions, e.g. "file:/path/to/cache.db".
func NewWSpecCache(dbPath string) (*WSpecCache, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewWeaverError(schema.CodeCacheError, fmt.Sprintf("open libsql: %s", err.Error())).WithCause(err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	if _, err := db.Exec(createTableDDL); err != nil {
		db.Close()
		return nil, schema.NewWeaverError(schema.CodeCacheError, fmt.Sprintf("create cache table: %s", err.Error())).WithCause(err)
	}

	return &WSpecCache{db: db}, nil
}

// Close closes the underlying database.
func (c *WSpecCache) Close() error { return c.db.Close() }

// ContentHash returns the cache key for an SDD document: a SHA-256 digest
// of its canonical wire-format JSON encoding. Two SDDs that marshal to the
// same bytes always share a cache entry.
func ContentHash(sdd *model.SankeyDefinition) (string, error) {
	doc := schema.SDDToDocument(sdd)
	b, err := json.Marshal(doc)
	if err != nil {
		return "", schema.NewWeaverError(schema.CodeCacheError, fmt.Sprintf("marshal SDD for hashing: %s", err.Error())).WithCause(err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the cached WSpecDocument for hash, or ok=false on a miss.
func (c *WSpecCache) Get(ctx context.Context, hash string) (doc schema.WSpecDocument, ok bool, err error) {
	var raw string
	row := c.db.QueryRowContext(ctx, `SELECT wspec_json FROM compiled_specs WHERE content_hash = ?`, hash)
	if scanErr := row.Scan(&raw); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return schema.WSpecDocument{}, false, nil
		}
		return schema.WSpecDocument{}, false, schema.NewWeaverError(schema.CodeCacheError, scanErr.Error()).WithCause(scanErr)
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return schema.WSpecDocument{}, false, schema.NewWeaverError(schema.CodeCacheError,
			fmt.Sprintf("decode cached WSpec: %s", err.Error())).WithCause(err)
	}
	return doc, true, nil
}

// Put stores spec under hash, overwriting any prior entry for that hash.
func (c *WSpecCache) Put(ctx context.Context, hash string, spec *model.WeaverSpec) error {
	raw, err := json.Marshal(schema.WSpecToDocument(spec))
	if err != nil {
		return schema.NewWeaverError(schema.CodeCacheError, fmt.Sprintf("marshal WSpec for caching: %s", err.Error())).WithCause(err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO compiled_specs (content_hash, wspec_json) VALUES (?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET wspec_json = excluded.wspec_json`,
		hash, string(raw),
	)
	if err != nil {
		return schema.NewWeaverError(schema.CodeCacheError, err.Error()).WithCause(err)
	}
	return nil
}
