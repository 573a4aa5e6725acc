// Package compiler turns a SankeyDefinition into a WeaverSpec: it expands
// bundles into a view graph (spec.md §4.2), cross-references each segment's
// partitions into concrete edges (spec.md §4.3), resolves bundle selection
// against those edges into a single decision tree (spec.md §4.4), and
// assembles the frozen, data-independent compiled plan (spec.md §4.5).
package compiler

import (
	"fmt"

	"github.com/rendis/weaver/internal/expressions"
	"github.com/rendis/weaver/internal/model"
	"github.com/rendis/weaver/internal/router"
	"github.com/rendis/weaver/internal/viewgraph"
	"github.com/rendis/weaver/pkg/schema"
)

// Compile validates req's SankeyDefinition and produces the WeaverSpec it
// resolves to, or the first schema.WeaverError encountered. Compilation is
// pure: the same request always produces a byte-identical WeaverSpec,
// independent of any dataset (spec.md §8 property 2).
func Compile(req *model.CompileRequest) (*model.WeaverSpec, error) {
	sdd := req.Definition

	if err := Validate(sdd); err != nil {
		return nil, err
	}
	if err := validateGroupMembership(sdd); err != nil {
		return nil, err
	}

	graph, err := viewgraph.Build(sdd)
	if err != nil {
		return nil, schema.NewWeaverError(schema.CodeSchemaValidation, err.Error())
	}
	if err := checkAcyclic(graph); err != nil {
		return nil, err
	}

	c := &compilation{sdd: sdd, graph: graph}
	var runtimeFilters map[string]string
	if c.filterQueries, runtimeFilters, err = precomputeFilterQueries(sdd); err != nil {
		return nil, err
	}

	nodeMap, groups, subIDs := c.buildNodesAndGroups()
	ordering := rewriteOrdering(sdd, subIDs)

	rules, edges, err := c.buildRoutingRules()
	if err != nil {
		return nil, err
	}
	tree := router.BuildEdgeTree(rules, router.AttrOrder(rules))

	return &model.WeaverSpec{
		Version:  model.WeaverSpecVersion,
		NodeMap:  nodeMap,
		Groups:   groups,
		Edges:    edges,
		Ordering: ordering,
		Tree:     *tree,
		Measures:       req.Measures,
		Display:        req.Display,
		RuntimeFilters: runtimeFilters,
	}, nil
}

// precomputeFilterQueries decomposes every distinct flow_selection
// expression across sdd's bundles up front. Most expressions statically
// reduce to a Query; one that doesn't (spec.md §9 Open Question (b)) gets a
// synthetic dispatch attribute instead, backed by the raw expression
// source in the returned runtimeFilters map for the executor to evaluate
// per row. Only a genuine parse failure fails compilation.
func precomputeFilterQueries(sdd *model.SankeyDefinition) (map[string]router.Query, map[string]string, error) {
	out := map[string]router.Query{}
	runtimeFilters := map[string]string{}
	for i, b := range sdd.Bundles {
		if b.FlowSelection == "" {
			continue
		}
		if _, ok := out[b.FlowSelection]; ok {
			continue
		}
		q, err := expressions.Decompose(b.FlowSelection)
		if err == nil {
			out[b.FlowSelection] = q
			continue
		}
		if _, compileErr := expressions.CompileFilter(b.FlowSelection); compileErr != nil {
			return nil, nil, schema.NewWeaverError(schema.CodeInvalidSelection,
				fmt.Sprintf("bundle %d: %s", i, compileErr.Error()))
		}
		attr := fmt.Sprintf("__expr_%d", len(runtimeFilters))
		runtimeFilters[attr] = b.FlowSelection
		out[b.FlowSelection] = router.Query{attr: router.Includes("true")}
	}
	return out, runtimeFilters, nil
}

// flowSelectionQuery returns the precomputed Query for a bundle's
// flow_selection expression (the empty Query for an unfiltered bundle).
func (c *compilation) flowSelectionQuery(expr string) router.Query {
	if expr == "" {
		return router.Query{}
	}
	return c.filterQueries[expr]
}
