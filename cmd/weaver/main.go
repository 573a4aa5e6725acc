package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rendis/weaver/internal/compiler"
	"github.com/rendis/weaver/internal/dataset"
	"github.com/rendis/weaver/internal/executor"
	"github.com/rendis/weaver/internal/logging"
	"github.com/rendis/weaver/internal/model"
	"github.com/rendis/weaver/internal/store"
	"github.com/rendis/weaver/internal/validation"
	"github.com/rendis/weaver/pkg/mcp"
	"github.com/rendis/weaver/pkg/schema"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "compile":
		runCompile(os.Args[2:])
	case "execute":
		runExecute(os.Args[2:])
	case "serve-mcp":
		runServeMCP(os.Args[2:])
	case "version":
		printVersion()
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: weaver <compile|execute|serve-mcp|version> [flags]")
}

func newLogger(cfg Config) *slog.Logger {
	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(strings.ToLower(cfg.LogLevel)))
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(logging.NewCorrelationHandler(handler))
}

// runID derives a short, deterministic correlation id from the bytes a
// compile or execute call was invoked with, so the same invocation always
// logs under the same id (spec.md §8's determinism property extends to the
// log trail, not just the output).
func runID(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:6])
}

// compileRequestDocument is the wire shape of a full compile invocation:
// a definition plus the measures and display settings the compiler needs,
// mirroring what pkg/mcp's weaver.compile tool accepts as separate args.
type compileRequestDocument struct {
	Definition schema.SDDDocument       `json:"definition"`
	Measures   []schema.MeasureDocument `json:"measures,omitempty"`
	Display    *schema.DisplayDocument  `json:"display,omitempty"`
}

func runCompile(args []string) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	input := fs.String("in", "", "path to compile request JSON (default: stdin)")
	out := fs.String("out", "", "path to write WeaverSpec JSON (default: stdout)")
	_ = fs.Parse(args)

	raw, err := readInput(*input)
	if err != nil {
		fatal("read input: %v", err)
	}

	logger := newLogger(loadConfig())
	ctx := logging.WithCompileID(context.Background(), runID(raw))

	var req compileRequestDocument
	if err := json.Unmarshal(raw, &req); err != nil {
		fatal("decode compile request: %v", err)
	}

	sdd, err := schema.DocumentToSDD(req.Definition)
	if err != nil {
		fatal("invalid definition: %v", err)
	}

	measures := make([]model.MeasureSpec, len(req.Measures))
	for i, m := range req.Measures {
		measures[i] = model.MeasureSpec{Column: m.Column, Aggregation: model.Aggregation(m.Aggregation)}
	}

	var display model.DisplaySpec
	if req.Display != nil {
		d, err := schema.DocumentToDisplay(*req.Display)
		if err != nil {
			fatal("invalid display: %v", err)
		}
		display = d
	}

	logger.InfoContext(ctx, schema.EventCompileStarted, "node_count", len(sdd.Nodes), "bundle_count", len(sdd.Bundles))

	spec, err := compiler.Compile(&model.CompileRequest{Definition: sdd, Measures: measures, Display: display})
	if err != nil {
		logger.ErrorContext(ctx, schema.EventCompileFailed, "error", err)
		fatal("compile failed: %v", err)
	}
	logger.InfoContext(ctx, schema.EventCompileCompleted, "edge_count", len(spec.Edges))

	if err := writeOutput(*out, schema.WSpecToDocument(spec)); err != nil {
		fatal("write output: %v", err)
	}
}

func runExecute(args []string) {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	specPath := fs.String("spec", "", "path to WeaverSpec JSON (required)")
	datasetPath := fs.String("dataset", "", "path to newline-delimited JSON dataset (default: stdin)")
	projection := fs.String("projection", "", "optional jq filter reshaping each record before routing")
	out := fs.String("out", "", "path to write SankeyData JSON (default: stdout)")
	_ = fs.Parse(args)

	if *specPath == "" {
		fatal("-spec is required")
	}

	specRaw, err := readInput(*specPath)
	if err != nil {
		fatal("read spec: %v", err)
	}

	logger := newLogger(loadConfig())
	ctx := logging.WithExecuteID(context.Background(), runID(specRaw))

	var doc schema.WSpecDocument
	if err := json.Unmarshal(specRaw, &doc); err != nil {
		fatal("decode spec: %v", err)
	}

	spec, err := schema.DocumentToWSpec(doc)
	if err != nil {
		fatal("invalid spec: %v", err)
	}

	var r io.Reader = os.Stdin
	if *datasetPath != "" {
		f, err := os.Open(*datasetPath)
		if err != nil {
			fatal("open dataset: %v", err)
		}
		defer f.Close()
		r = f
	}

	it, err := dataset.NewJSONLIterator(r, *projection)
	if err != nil {
		fatal("invalid dataset: %v", err)
	}

	logger.InfoContext(ctx, schema.EventExecuteStarted, "edge_count", len(spec.Edges))

	result, err := executor.Execute(spec, it)
	if err != nil {
		logger.ErrorContext(ctx, schema.EventExecuteFailed, "error", err)
		fatal("execute failed: %v", err)
	}
	logger.InfoContext(ctx, schema.EventExecuteCompleted, "link_count", len(result.Links))

	if err := writeOutput(*out, result); err != nil {
		fatal("write output: %v", err)
	}
}

func runServeMCP(args []string) {
	fs := flag.NewFlagSet("serve-mcp", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the compiled-spec cache database (default from settings)")
	_ = fs.Parse(args)

	cfg := loadConfig()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	logger := newLogger(cfg)

	if err := os.MkdirAll(weaverDir(), 0o755); err != nil {
		fatal("create weaver dir: %v", err)
	}

	cache, err := store.NewWSpecCache(cfg.DBPath)
	if err != nil {
		fatal("open cache: %v", err)
	}
	defer cache.Close()

	validator, err := validation.NewJSONSchemaValidator()
	if err != nil {
		fatal("build validator: %v", err)
	}

	srv := mcp.NewWeaverServer(mcp.WeaverServerDeps{Cache: cache, Validator: validator, Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("weaver MCP server starting", "db_path", cfg.DBPath)
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		fatal("serve: %v", err)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if path == "" {
		_, err := os.Stdout.Write(append(b, '\n'))
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
