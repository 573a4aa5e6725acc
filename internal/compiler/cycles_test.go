package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weaver/internal/viewgraph"
	"github.com/rendis/weaver/pkg/schema"
)

func TestCheckAcyclic_Acyclic(t *testing.T) {
	g := &viewgraph.Graph{Segments: []viewgraph.Segment{
		{From: "a", To: "b"},
		{From: "b", To: "c"},
	}}
	assert.NoError(t, checkAcyclic(g))
}

func TestCheckAcyclic_DetectsCycle(t *testing.T) {
	g := &viewgraph.Graph{Segments: []viewgraph.Segment{
		{From: "a", To: "b"},
		{From: "b", To: "c"},
		{From: "c", To: "a"},
	}}

	err := checkAcyclic(g)
	require.Error(t, err)
	var werr *schema.WeaverError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, schema.CodeCyclicSegments, werr.Code)
}

func TestCheckAcyclic_EmptyGraph(t *testing.T) {
	assert.NoError(t, checkAcyclic(&viewgraph.Graph{}))
}
