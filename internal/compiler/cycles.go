package compiler

import (
	"sort"

	"github.com/rendis/weaver/internal/viewgraph"
	"github.com/rendis/weaver/pkg/schema"
)

// checkAcyclic rejects a view graph whose segments form a cycle: Kahn's
// algorithm over the From->To segment edges, ported from opcode's
// validateDAG cycle check. A cyclic chain of segments has no valid left-to-
// right layering, so the compiler fails fast instead of producing a WSpec
// the layout stage could never render consistently. Segments with an
// Elsewhere end ("") are left out: the boundary is not a layout node, so
// stubs into and out of it cannot close a cycle.
func checkAcyclic(g *viewgraph.Graph) error {
	nodes := map[string]bool{}
	adj := map[string][]string{}
	reverse := map[string][]string{}

	for _, seg := range g.Segments {
		if seg.From == "" || seg.To == "" {
			continue
		}
		nodes[seg.From] = true
		nodes[seg.To] = true
		adj[seg.From] = append(adj[seg.From], seg.To)
		reverse[seg.To] = append(reverse[seg.To], seg.From)
	}

	inDegree := make(map[string]int, len(nodes))
	for n := range nodes {
		inDegree[n] = len(reverse[n])
	}

	queue := make([]string, 0, len(nodes))
	for n, d := range inDegree {
		if d == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		next := append([]string{}, adj[n]...)
		sort.Strings(next)
		for _, m := range next {
			inDegree[m]--
			if inDegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	if visited != len(nodes) {
		return schema.NewWeaverError(schema.CodeCyclicSegments,
			"view graph contains a cyclic chain of segments")
	}
	return nil
}
