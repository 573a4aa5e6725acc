// Package viewgraph expands a SankeyDefinition's bundles into the chain of
// concrete (from, to) node segments they pass through, per spec.md §4.2.
package viewgraph

import (
	"fmt"
	"sort"

	"github.com/rendis/weaver/internal/model"
)

// Segment is one hop of the view graph. From and To are real node ids,
// except that either one (never both) may be "" — the sentinel for a hop
// whose other end is Elsewhere, a stub that exists only so the adjacent
// real node gets a routing rule for the boundary crossing. Multiple
// bundles may share a segment when their chains overlap; BundleIndices
// records every bundle (by its position in the SDD's Bundles slice) that
// contributes flow to this hop, in the order established by bundleOrder.
type Segment struct {
	From, To      string
	BundleIndices []int
}

// Graph is the expanded view: every segment the SDD's bundles touch, plus
// each bundle's ordered chain of segment indices (the hops it is split
// into by its waypoints).
type Graph struct {
	Segments       []Segment
	BundleSegments map[int][]int // bundle index -> segment indices, in chain order
}

// Build expands sdd's bundles into a Graph, ported from sankeyview's
// view_graph / _add_bundles_to_graph / _bundle_order. A hop between two
// Elsewhere endpoints (both the bundle's source and target are Elsewhere,
// with no waypoints between them) contributes nothing — Elsewhere has no
// position in the layout, so that degenerate bundle never matches a row
// routed anywhere.
func Build(sdd *model.SankeyDefinition) (*Graph, error) {
	rank, err := rankNodes(sdd.Ordering)
	if err != nil {
		return nil, err
	}

	order := bundleOrder(sdd.Bundles, rank)

	g := &Graph{BundleSegments: map[int][]int{}}
	segmentIndex := map[[2]string]int{}

	for _, bi := range order {
		b := &sdd.Bundles[bi]
		chain := chainNodes(b)
		for i := 0; i+1 < len(chain); i++ {
			a, c := chain[i], chain[i+1]
			if a.IsElsewhere() && c.IsElsewhere() {
				continue
			}
			key := [2]string{sideID(a), sideID(c)}
			idx, ok := segmentIndex[key]
			if !ok {
				idx = len(g.Segments)
				segmentIndex[key] = idx
				g.Segments = append(g.Segments, Segment{From: key[0], To: key[1]})
			}
			g.Segments[idx].BundleIndices = append(g.Segments[idx].BundleIndices, bi)
			g.BundleSegments[bi] = append(g.BundleSegments[bi], idx)
		}
	}

	return g, nil
}

// sideID returns ref's node id, or "" if ref is Elsewhere.
func sideID(ref model.NodeRef) string {
	if ref.IsElsewhere() {
		return ""
	}
	return ref.ID()
}

// chainNodes returns a bundle's full node chain: source, then its
// waypoints (as plain nodes), then target.
func chainNodes(b *model.Bundle) []model.NodeRef {
	chain := make([]model.NodeRef, 0, len(b.Waypoints)+2)
	chain = append(chain, b.Source)
	for _, wp := range b.Waypoints {
		chain = append(chain, model.Node(wp))
	}
	chain = append(chain, b.Target)
	return chain
}

// rankNodes assigns each node id its horizontal layer index from the SDD's
// Ordering (layer -> band -> ids).
func rankNodes(ordering model.Ordering) (map[string]int, error) {
	rank := map[string]int{}
	for layer, bands := range ordering {
		for _, band := range bands {
			for _, id := range band {
				if prev, ok := rank[id]; ok && prev != layer {
					return nil, fmt.Errorf("node %q appears in multiple ordering layers", id)
				}
				rank[id] = layer
			}
		}
	}
	return rank, nil
}

// bundleOrder returns bundle indices (into sdd.Bundles) sorted per
// sankeyview's _bundle_order: Elsewhere-touching bundles sort last; among
// the rest, forward bundles (target ranked after source) sort before
// backward ones, shortest-hop forward bundles first and longest-hop
// backward bundles first. This fixes the deterministic declaration order
// segments are first created in, which in turn fixes segment ids.
func bundleOrder(bundles []model.Bundle, rank map[string]int) []int {
	idx := make([]int, len(bundles))
	for i := range bundles {
		idx[i] = i
	}

	key := func(i int) (tier, delta int) {
		b := &bundles[i]
		if b.FromElsewhere() || b.ToElsewhere() {
			return 2, 0
		}
		r0, r1 := rank[b.Source.ID()], rank[b.Target.ID()]
		if r1 > r0 {
			return 0, r1 - r0
		}
		return 1, r1 - r0
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ta, da := key(idx[a])
		tb, db := key(idx[b])
		if ta != tb {
			return ta < tb
		}
		return da < db
	})
	return idx
}
