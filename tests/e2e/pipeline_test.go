// Package e2e exercises the full compile-then-execute pipeline against
// a small but non-trivial diagram: a partitioned source, a waypoint hop,
// an Elsewhere-originating bundle, and a flow_selection filter.
package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weaver/internal/compiler"
	"github.com/rendis/weaver/internal/dataset"
	"github.com/rendis/weaver/internal/executor"
	"github.com/rendis/weaver/internal/model"
)

func buildDefinition() *model.SankeyDefinition {
	mines := model.ProcessGroup{
		ID:        "mines",
		Processes: []string{"coal_mine", "iron_mine"},
		Partition: model.SimplePartition("id", map[string][]string{
			"coal": {"coal_mine"},
			"iron": {"iron_mine"},
		}, []string{"coal", "iron"}),
	}
	port := model.Waypoint{ID: "port"}
	plant := model.ProcessGroup{ID: "plant", Processes: []string{"steel_plant"}}

	return &model.SankeyDefinition{
		Nodes: map[string]model.SDDNode{
			"mines": {ProcessGroup: &mines},
			"port":  {Waypoint: &port},
			"plant": {ProcessGroup: &plant},
		},
		Bundles: []model.Bundle{
			{ID: 0, Source: model.Node("mines"), Target: model.Node("plant"), Waypoints: []string{"port"}},
			{ID: 1, Source: model.Elsewhere, Target: model.Node("plant"), FlowSelection: `material == "scrap"`},
		},
		Ordering: model.Ordering{{{"mines"}}, {{"port"}}, {{"plant"}}},
	}
}

func TestCompileAndExecute_PartitionedWaypointChain(t *testing.T) {
	req := &model.CompileRequest{
		Definition: buildDefinition(),
		Measures:   []model.MeasureSpec{{Column: "tons", Aggregation: model.AggregationSum}},
		Display: model.DisplaySpec{
			LinkWidth: "tons",
			LinkColor: model.ColorSpec{Kind: model.ColorKindCategorical, Attr: "source", Default: "#888888",
				Lookup: map[string]string{"mines^coal": "#111111", "mines^iron": "#222222"}},
		},
	}

	spec, err := compiler.Compile(req)
	require.NoError(t, err)
	assert.Empty(t, spec.RuntimeFilters, "material == \"scrap\" statically decomposes")

	rows := dataset.NewSliceIterator([]dataset.Row{
		{"source": "coal_mine", "target": "steel_plant", "tons": 100.0},
		{"source": "iron_mine", "target": "steel_plant", "tons": 50.0},
		{"material": "scrap", "target": "steel_plant", "tons": 20.0},
	})

	data, err := executor.Execute(spec, rows)
	require.NoError(t, err)

	assert.NotEmpty(t, data.Nodes)
	assert.NotEmpty(t, data.Links)

	var sawScrapLink bool
	for _, n := range data.Nodes {
		if n.ID != "plant" {
			continue
		}
		for _, l := range n.FromElsewhereLinks {
			sawScrapLink = true
			assert.Nil(t, l.Source)
			assert.Equal(t, 20.0, l.LinkWidth)
		}
	}
	assert.True(t, sawScrapLink, "the elsewhere-origin scrap bundle should surface as a from-elsewhere link on plant")
}

func TestCompileAndExecute_DeterministicAcrossRuns(t *testing.T) {
	req := &model.CompileRequest{
		Definition: buildDefinition(),
		Measures:   []model.MeasureSpec{{Column: "tons", Aggregation: model.AggregationSum}},
	}

	spec1, err := compiler.Compile(req)
	require.NoError(t, err)
	spec2, err := compiler.Compile(req)
	require.NoError(t, err)

	assert.Equal(t, len(spec1.Edges), len(spec2.Edges))
	assert.Equal(t, spec1.Ordering, spec2.Ordering)
}

func TestCompileAndExecute_UnroutedRowsProduceNoLinks(t *testing.T) {
	req := &model.CompileRequest{
		Definition: buildDefinition(),
		Measures:   []model.MeasureSpec{{Column: "tons", Aggregation: model.AggregationSum}},
	}
	spec, err := compiler.Compile(req)
	require.NoError(t, err)

	rows := dataset.NewSliceIterator([]dataset.Row{
		{"source": "unrelated_process", "target": "unrelated_target", "tons": 5.0},
	})

	data, err := executor.Execute(spec, rows)
	require.NoError(t, err)
	assert.Empty(t, data.Links)
}
