package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weaver/internal/model"
	"github.com/rendis/weaver/pkg/schema"
)

func twoNodeSDD() *model.SankeyDefinition {
	return &model.SankeyDefinition{
		Nodes: map[string]model.SDDNode{
			"a": {ProcessGroup: &model.ProcessGroup{ID: "a", Processes: []string{"p1"}}},
			"b": {ProcessGroup: &model.ProcessGroup{ID: "b", Processes: []string{"p2"}}},
		},
		Bundles:  []model.Bundle{{ID: 0, Source: model.Node("a"), Target: model.Node("b")}},
		Ordering: model.Ordering{{{"a"}}, {{"b"}}},
	}
}

func TestValidate_WellFormed(t *testing.T) {
	assert.NoError(t, Validate(twoNodeSDD()))
}

func TestValidate_UnknownSourceNode(t *testing.T) {
	sdd := twoNodeSDD()
	sdd.Bundles[0].Source = model.Node("ghost")

	err := Validate(sdd)
	require.Error(t, err)
	var werr *schema.WeaverError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, schema.CodeUnknownNode, werr.Code)
}

func TestValidate_WaypointUsedButIsProcessGroup(t *testing.T) {
	sdd := twoNodeSDD()
	sdd.Bundles[0].Waypoints = []string{"b"}

	err := Validate(sdd)
	require.Error(t, err)
	var werr *schema.WeaverError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, schema.CodeInvalidWaypoint, werr.Code)
}

func TestValidate_UndeclaredWaypoint(t *testing.T) {
	sdd := twoNodeSDD()
	sdd.Bundles[0].Waypoints = []string{"ghost"}

	err := Validate(sdd)
	require.Error(t, err)
	var werr *schema.WeaverError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, schema.CodeUnknownNode, werr.Code)
}

func TestValidate_OrderingMissingNode(t *testing.T) {
	sdd := twoNodeSDD()
	sdd.Ordering = model.Ordering{{{"a"}}}

	err := Validate(sdd)
	require.Error(t, err)
	var werr *schema.WeaverError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, schema.CodeIncompleteOrdering, werr.Code)
}

func TestValidate_OrderingDuplicatesNode(t *testing.T) {
	sdd := twoNodeSDD()
	sdd.Ordering = model.Ordering{{{"a"}}, {{"a", "b"}}}

	err := Validate(sdd)
	require.Error(t, err)
	var werr *schema.WeaverError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, schema.CodeIncompleteOrdering, werr.Code)
}

func TestValidate_OrderingUnknownNode(t *testing.T) {
	sdd := twoNodeSDD()
	sdd.Ordering = model.Ordering{{{"a"}}, {{"b"}}, {{"ghost"}}}

	err := Validate(sdd)
	require.Error(t, err)
	var werr *schema.WeaverError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, schema.CodeUnknownNode, werr.Code)
}

func TestValidateGroupMembership_StrayValueRejected(t *testing.T) {
	sdd := twoNodeSDD()
	sdd.Nodes["a"] = model.SDDNode{ProcessGroup: &model.ProcessGroup{
		ID:        "a",
		Processes: []string{"p1"},
		Partition: model.SimplePartition("id", map[string][]string{"g1": {"p1", "unclaimed"}}, []string{"g1"}),
	}}

	err := validateGroupMembership(sdd)
	require.Error(t, err)
	var werr *schema.WeaverError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, schema.CodeSchemaValidation, werr.Code)
	assert.Equal(t, "a", werr.NodeID)
}

func TestValidateGroupMembership_AllClaimedValuesOwned(t *testing.T) {
	sdd := twoNodeSDD()
	sdd.Nodes["a"] = model.SDDNode{ProcessGroup: &model.ProcessGroup{
		ID:        "a",
		Processes: []string{"p1", "p3"},
		Partition: model.SimplePartition("id", map[string][]string{"g1": {"p1"}}, []string{"g1"}),
	}}

	assert.NoError(t, validateGroupMembership(sdd))
}
