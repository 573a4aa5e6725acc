package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weaver/internal/validation"
)

func buildRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}

func minimalDefinitionArgs() map[string]any {
	return map[string]any{
		"nodes": map[string]any{
			"a": map[string]any{"kind": "process_group", "processes": []any{"p1"}, "direction": "L"},
			"b": map[string]any{"kind": "process_group", "processes": []any{"p2"}, "direction": "R"},
		},
		"bundles": []any{
			map[string]any{"source": "a", "target": "b"},
		},
		"ordering": []any{
			[]any{[]any{"a"}},
			[]any{[]any{"b"}},
		},
	}
}

func TestHandleCompile_Success(t *testing.T) {
	s := NewWeaverServer(WeaverServerDeps{})

	req := buildRequest(map[string]any{
		"definition": minimalDefinitionArgs(),
		"measures":   map[string]any{"value": "sum"},
	})

	result, err := s.handleCompile(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	var spec map[string]any
	unmarshalResult(t, result, &spec)
	assert.Equal(t, "2.0", spec["version"])
}

func TestHandleCompile_MissingDefinition(t *testing.T) {
	s := NewWeaverServer(WeaverServerDeps{})

	req := buildRequest(map[string]any{})
	result, err := s.handleCompile(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCompile_FailsSchemaValidation(t *testing.T) {
	v, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)

	s := NewWeaverServer(WeaverServerDeps{Validator: v})

	def := minimalDefinitionArgs()
	delete(def, "ordering")

	req := buildRequest(map[string]any{"definition": def})
	result, err := s.handleCompile(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleExecute_RoundTrip(t *testing.T) {
	s := NewWeaverServer(WeaverServerDeps{})

	compileReq := buildRequest(map[string]any{
		"definition": minimalDefinitionArgs(),
		"measures":   map[string]any{"value": "sum"},
	})
	compiled, err := s.handleCompile(context.Background(), compileReq)
	require.NoError(t, err)
	require.False(t, compiled.IsError)

	var specArgs map[string]any
	unmarshalResult(t, compiled, &specArgs)

	execReq := buildRequest(map[string]any{
		"spec":    specArgs,
		"dataset": `{"p1": "a", "p2": "b", "value": 10}` + "\n",
	})

	result, err := s.handleExecute(context.Background(), execReq)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var sankeyData map[string]any
	unmarshalResult(t, result, &sankeyData)
	assert.Contains(t, sankeyData, "links")
}

func TestHandleExecute_MissingDataset(t *testing.T) {
	s := NewWeaverServer(WeaverServerDeps{})

	compileReq := buildRequest(map[string]any{"definition": minimalDefinitionArgs()})
	compiled, err := s.handleCompile(context.Background(), compileReq)
	require.NoError(t, err)

	var specArgs map[string]any
	unmarshalResult(t, compiled, &specArgs)

	req := buildRequest(map[string]any{"spec": specArgs})
	result, err := s.handleExecute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleExecute_MissingSpec(t *testing.T) {
	s := NewWeaverServer(WeaverServerDeps{})

	req := buildRequest(map[string]any{"dataset": "{}\n"})
	result, err := s.handleExecute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestParseMeasures(t *testing.T) {
	req := buildRequest(map[string]any{
		"measures": map[string]any{"value": "sum", "count": "mean"},
	})
	measures := parseMeasures(req)
	require.Len(t, measures, 2)
}

func TestParseMeasures_Empty(t *testing.T) {
	req := buildRequest(map[string]any{})
	assert.Nil(t, parseMeasures(req))
}
