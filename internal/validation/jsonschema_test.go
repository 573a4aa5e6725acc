package validation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weaver/pkg/schema"
)

func TestNewJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.NotNil(t, v.sddSchema)
	assert.NotNil(t, v.wspecSchema)
}

func minimalSDDDoc() schema.SDDDocument {
	return schema.SDDDocument{
		Nodes: map[string]schema.SDDNodeDocument{
			"a": {Kind: "process_group", Processes: []string{"p1"}, Direction: "L"},
			"b": {Kind: "process_group", Processes: []string{"p2"}, Direction: "R"},
		},
		Bundles: []schema.BundleDocument{
			{Source: strPtr("a"), Target: strPtr("b")},
		},
		Ordering: [][][]string{{{"a"}}, {{"b"}}},
	}
}

func strPtr(s string) *string { return &s }

func TestValidateSDDDocument_Valid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateSDDDocument(minimalSDDDoc())
	assert.NoError(t, err)
}

func TestValidateSDDDocument_MissingRequiredField(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	doc := minimalSDDDoc()
	raw := map[string]any{"nodes": doc.Nodes, "bundles": doc.Bundles} // no ordering
	err = v.ValidateSDDDocument(raw)
	require.Error(t, err)

	werr, ok := err.(*schema.WeaverError)
	require.True(t, ok)
	assert.Equal(t, schema.CodeSchemaValidation, werr.Code)
}

func TestValidateSDDDocument_InvalidDirection(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	doc := minimalSDDDoc()
	n := doc.Nodes["a"]
	n.Direction = "up"
	doc.Nodes["a"] = n

	err = v.ValidateSDDDocument(doc)
	require.Error(t, err)
}

func TestValidateSDDDocument_InvalidNodeKind(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	doc := minimalSDDDoc()
	n := doc.Nodes["a"]
	n.Kind = "sideways"
	doc.Nodes["a"] = n

	err = v.ValidateSDDDocument(doc)
	require.Error(t, err)
}

func TestValidateSDDDocument_UnknownTopLevelField(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	raw := map[string]any{
		"nodes":    map[string]any{},
		"bundles":  []any{},
		"ordering": []any{},
		"unknown":  "field",
	}
	err = v.ValidateSDDDocument(raw)
	require.Error(t, err)
}

func minimalWSpecDoc() schema.WSpecDocument {
	return schema.WSpecDocument{
		Version: "2.0",
		Nodes: map[string]schema.NodeDocument{
			"a": {Title: "A", Type: "process", Direction: "L"},
		},
		Groups: []schema.GroupSpecDocument{},
		Edges:  []schema.EdgeDocument{},
		Ordering: [][][]string{
			{{"a"}},
		},
		Measures: []schema.MeasureDocument{
			{Column: "value", Aggregation: "sum"},
		},
		Display: schema.DisplayDocument{
			LinkWidth: "value",
			LinkColor: schema.ColorSpecDocument{Type: "categorical", Attr: "type"},
		},
		RoutingTree: schema.TreeDocument{Value: []int{}},
	}
}

func TestValidateWSpecDocument_Valid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateWSpecDocument(minimalWSpecDoc())
	assert.NoError(t, err)
}

func TestValidateWSpecDocument_InvalidAggregation(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	doc := minimalWSpecDoc()
	doc.Measures[0].Aggregation = "median"

	err = v.ValidateWSpecDocument(doc)
	require.Error(t, err)
}

func TestValidateWSpecDocument_MissingVersion(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	raw := map[string]any{
		"nodes": map[string]any{}, "groups": []any{}, "edges": []any{},
		"ordering": []any{}, "measures": []any{}, "display": map[string]any{},
		"routing_tree": map[string]any{},
	}
	err = v.ValidateWSpecDocument(raw)
	require.Error(t, err)
}

// --- ValidateAgainst (dynamic schemas, e.g. dataset projection contracts) ---

func TestValidateAgainst_EmptySchema(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateAgainst(map[string]any{"foo": "bar"}, nil)
	assert.NoError(t, err, "nil schema means no validation")

	err = v.ValidateAgainst(map[string]any{"foo": "bar"}, []byte{})
	assert.NoError(t, err, "empty schema means no validation")
}

func TestValidateAgainst_ValidObject(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	s := []byte(`{
		"type": "object",
		"required": ["material", "amount"],
		"properties": {
			"material": {"type": "string"},
			"amount": {"type": "number", "minimum": 0}
		}
	}`)

	err = v.ValidateAgainst(map[string]any{"material": "steel", "amount": 12.5}, s)
	assert.NoError(t, err)
}

func TestValidateAgainst_MissingRequired(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	s := []byte(`{
		"type": "object",
		"required": ["material"],
		"properties": {"material": {"type": "string"}}
	}`)

	err = v.ValidateAgainst(map[string]any{"amount": 1}, s)
	require.Error(t, err)

	werr, ok := err.(*schema.WeaverError)
	require.True(t, ok)
	assert.Equal(t, schema.CodeSchemaValidation, werr.Code)
}

func TestValidateAgainst_InvalidSchema(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateAgainst(map[string]any{"foo": "bar"}, []byte(`{not json`))
	require.Error(t, err)

	werr, ok := err.(*schema.WeaverError)
	require.True(t, ok)
	assert.Equal(t, schema.CodeSchemaValidation, werr.Code)
	assert.Contains(t, werr.Message, "invalid schema")
}

func TestValidateAgainst_SchemaCaching(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	s := []byte(`{"type": "object", "properties": {"x": {"type": "integer"}}}`)
	input := map[string]any{"x": 42}

	require.NoError(t, v.ValidateAgainst(input, s))

	v.mu.RLock()
	cacheLen := len(v.cache)
	v.mu.RUnlock()
	assert.Equal(t, 1, cacheLen)

	require.NoError(t, v.ValidateAgainst(input, s))

	v.mu.RLock()
	cacheLen2 := len(v.cache)
	v.mu.RUnlock()
	assert.Equal(t, 1, cacheLen2, "cache size should not change on repeat schema")
}

func TestValidateAgainst_Concurrent(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	schemaA := []byte(`{"type": "object", "properties": {"a": {"type": "string"}}}`)
	schemaB := []byte(`{"type": "object", "properties": {"b": {"type": "integer"}}}`)

	var wg sync.WaitGroup
	errs := make([]error, 100)

	for i := range 100 {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			var s []byte
			var input map[string]any
			if idx%2 == 0 {
				s = schemaA
				input = map[string]any{"a": "hello"}
			} else {
				s = schemaB
				input = map[string]any{"b": 42}
			}
			errs[idx] = v.ValidateAgainst(input, s)
		}(i)
	}
	wg.Wait()

	for i, e := range errs {
		assert.NoError(t, e, "goroutine %d should not error", i)
	}
}

func TestValidateAgainst_Enum(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	s := []byte(`{
		"type": "object",
		"properties": {"aggregation": {"type": "string", "enum": ["sum", "mean"]}}
	}`)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, v.ValidateAgainst(map[string]any{"aggregation": "sum"}, s))
	})
	t.Run("invalid", func(t *testing.T) {
		assert.Error(t, v.ValidateAgainst(map[string]any{"aggregation": "median"}, s))
	})
}
