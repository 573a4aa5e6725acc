package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/weaver/internal/compiler"
	"github.com/rendis/weaver/internal/dataset"
	"github.com/rendis/weaver/internal/executor"
	"github.com/rendis/weaver/internal/logging"
	"github.com/rendis/weaver/internal/model"
	"github.com/rendis/weaver/pkg/schema"
)

// handleCompile compiles an SDD document into a WeaverSpec document.
func (s *WeaverServer) handleCompile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := mcp.ParseStringMap(req, "definition", nil)
	if args == nil {
		return mcp.NewToolResultError("definition is required"), nil
	}

	var doc schema.SDDDocument
	if convErr := remarshal(args, &doc); convErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", convErr)), nil
	}

	if s.validator != nil {
		if valErr := s.validator.ValidateSDDDocument(doc); valErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("definition failed schema validation: %v", valErr)), nil
		}
	}

	sdd, err := schema.DocumentToSDD(doc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", err)), nil
	}

	measures := parseMeasures(req)
	display := parseDisplay(req)

	hash, err := hashRequest(sdd, measures, display)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to hash request: %v", err)), nil
	}
	ctx = logging.WithCompileID(ctx, hash[:12])

	useCache, _ := strconv.ParseBool(req.GetString("use_cache", "false"))
	if useCache && s.cache != nil {
		if cached, ok, getErr := s.cache.Get(ctx, hash); getErr == nil && ok {
			s.logger.InfoContext(ctx, schema.EventCacheHit)
			return marshalResult(cached)
		}
		s.logger.InfoContext(ctx, schema.EventCacheMiss)
	}

	s.logger.InfoContext(ctx, schema.EventCompileStarted, "node_count", len(sdd.Nodes), "bundle_count", len(sdd.Bundles))

	spec, err := compiler.Compile(&model.CompileRequest{Definition: sdd, Measures: measures, Display: display})
	if err != nil {
		s.logger.ErrorContext(ctx, schema.EventCompileFailed, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("compile failed: %v", err)), nil
	}
	s.logger.InfoContext(ctx, schema.EventCompileCompleted, "edge_count", len(spec.Edges))

	if useCache && s.cache != nil && hash != "" {
		_ = s.cache.Put(ctx, hash, spec)
	}

	return marshalResult(schema.WSpecToDocument(spec))
}

// handleExecute routes a dataset through a previously compiled WeaverSpec.
func (s *WeaverServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	specArgs := mcp.ParseStringMap(req, "spec", nil)
	if specArgs == nil {
		return mcp.NewToolResultError("spec is required"), nil
	}

	var doc schema.WSpecDocument
	if convErr := remarshal(specArgs, &doc); convErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid spec: %v", convErr)), nil
	}

	if s.validator != nil {
		if valErr := s.validator.ValidateWSpecDocument(doc); valErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("spec failed schema validation: %v", valErr)), nil
		}
	}

	spec, err := schema.DocumentToWSpec(doc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid spec: %v", err)), nil
	}

	raw, err := req.RequireString("dataset")
	if err != nil {
		return mcp.NewToolResultError("dataset is required"), nil
	}
	projection := req.GetString("projection", "")

	ctx = logging.WithExecuteID(ctx, hashBytes([]byte(raw))[:12])

	it, err := dataset.NewJSONLIterator(strings.NewReader(raw), projection)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid dataset: %v", err)), nil
	}

	s.logger.InfoContext(ctx, schema.EventExecuteStarted, "edge_count", len(spec.Edges))

	result, err := executor.Execute(spec, it)
	if err != nil {
		s.logger.ErrorContext(ctx, schema.EventExecuteFailed, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("execute failed: %v", err)), nil
	}
	s.logger.InfoContext(ctx, schema.EventExecuteCompleted, "link_count", len(result.Links))

	return marshalResult(result)
}

// parseMeasures reads the optional "measures" argument: a column-name to
// aggregation-name map, e.g. {"value": "sum", "count": "mean"}.
func parseMeasures(req mcp.CallToolRequest) []model.MeasureSpec {
	raw := mcp.ParseStringMap(req, "measures", nil)
	if len(raw) == 0 {
		return nil
	}

	out := make([]model.MeasureSpec, 0, len(raw))
	for column, agg := range raw {
		aggStr, ok := agg.(string)
		if !ok {
			continue
		}
		out = append(out, model.MeasureSpec{Column: column, Aggregation: model.Aggregation(aggStr)})
	}
	return out
}

// parseDisplay reads the optional "display" object argument.
func parseDisplay(req mcp.CallToolRequest) model.DisplaySpec {
	raw := mcp.ParseStringMap(req, "display", nil)
	if raw == nil {
		return model.DisplaySpec{}
	}

	var doc schema.DisplayDocument
	if err := remarshal(raw, &doc); err != nil {
		return model.DisplaySpec{}
	}

	display, err := schema.DocumentToDisplay(doc)
	if err != nil {
		return model.DisplaySpec{}
	}
	return display
}

// hashRequest hashes the full compile request (definition, measures, display)
// so weaver.compile can key its cache lookup on more than just the
// definition — store.ContentHash only covers the SDD, but two requests with
// the same definition and different measures must not collide.
func hashRequest(sdd *model.SankeyDefinition, measures []model.MeasureSpec, display model.DisplaySpec) (string, error) {
	payload := struct {
		Definition schema.SDDDocument   `json:"definition"`
		Measures   []model.MeasureSpec  `json:"measures"`
		Display    model.DisplaySpec    `json:"display"`
	}{
		Definition: schema.SDDToDocument(sdd),
		Measures:   measures,
		Display:    display,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return hashBytes(b), nil
}

// hashBytes derives a deterministic, content-addressed correlation id: the
// same request or dataset always logs under the same id, matching the
// replay-determinism property spec.md §8 states for compiled output.
func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// remarshal round-trips v through JSON to decode it into out, the simplest
// way to turn the loosely-typed map[string]any the MCP SDK hands handlers
// into the strongly-typed wire documents pkg/schema defines.
func remarshal(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
