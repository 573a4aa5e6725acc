package store

import (
	"context"
	"path/filepath"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weaver/internal/model"
)

func newTestCache(t *testing.T) *WSpecCache {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cache.db")
	c, err := NewWSpecCache("file:" + dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleSDD() *model.SankeyDefinition {
	return &model.SankeyDefinition{
		Nodes: map[string]model.SDDNode{
			"a": {ProcessGroup: &model.ProcessGroup{ID: "a", Processes: []string{"p1"}, Direction: model.DirectionLeft}},
			"b": {ProcessGroup: &model.ProcessGroup{ID: "b", Processes: []string{"p2"}, Direction: model.DirectionRight}},
		},
		Bundles: []model.Bundle{
			{ID: 0, Source: model.Node("a"), Target: model.Node("b")},
		},
		Ordering: model.Ordering{{{"a"}}, {{"b"}}},
	}
}

func sampleWeaverSpec() *model.WeaverSpec {
	nm := orderedmap.New[string, model.NodeSpec]()
	nm.Set("a", model.NodeSpec{ID: "a", Kind: model.NodeKindProcess, Title: "A", Direction: model.DirectionLeft})
	nm.Set("b", model.NodeSpec{ID: "b", Kind: model.NodeKindProcess, Title: "B", Direction: model.DirectionRight})

	return &model.WeaverSpec{
		Version: model.WeaverSpecVersion,
		NodeMap: nm,
		Edges: []model.EdgeSpec{
			{ID: 0, Source: strPtr("a"), Target: strPtr("b"), Type: "*", Time: "*", BundleIDs: []model.BundleID{0}},
		},
		Ordering: model.Ordering{{{"a"}}, {{"b"}}},
		Tree:     model.TreeNode{Leaf: true, EdgeIDs: []int{0}},
		Measures: []model.MeasureSpec{{Column: "value", Aggregation: model.AggregationSum}},
		Display:  model.DisplaySpec{LinkWidth: "value"},
	}
}

func strPtr(s string) *string { return &s }

func TestWSpecCacheMiss(t *testing.T) {
	c := newTestCache(t)
	_, ok, err := c.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWSpecCachePutGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	sdd := sampleSDD()
	hash, err := ContentHash(sdd)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	spec := sampleWeaverSpec()
	require.NoError(t, c.Put(ctx, hash, spec))

	doc, ok, err := c.Get(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.WeaverSpecVersion, doc.Version)
	assert.Len(t, doc.Edges, 1)
}

func TestWSpecCachePutOverwrites(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	spec := sampleWeaverSpec()
	require.NoError(t, c.Put(ctx, "k", spec))

	spec.Measures = append(spec.Measures, model.MeasureSpec{Column: "count", Aggregation: model.AggregationMean})
	require.NoError(t, c.Put(ctx, "k", spec))

	doc, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, doc.Measures, 2)
}

func TestContentHashStableAcrossEquivalentSDDs(t *testing.T) {
	h1, err := ContentHash(sampleSDD())
	require.NoError(t, err)
	h2, err := ContentHash(sampleSDD())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
