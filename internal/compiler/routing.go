package compiler

import (
	"sort"

	"github.com/rendis/weaver/internal/model"
	"github.com/rendis/weaver/internal/partitioncross"
	"github.com/rendis/weaver/internal/router"
)

// buildRoutingRules assembles the final (Query -> []int edge id) rules the
// decision tree is built from, ported from combined_router.py's
// build_routing_rules: bundle selection determines WHICH bundle(s) a row's
// source/target/flow_selection matches; partition-cross determines WHICH
// concrete edge within that bundle's chain. Returns the rules plus the
// final, deduplicated list of EdgeSpecs, numbered in the order spec.md §4.3
// mandates: (bundle origin index, segment index, src_sub index, tgt_sub
// index, flow index, time index).
//
// Segment routing is computed per bundle rather than cached per segment
// because a bundle may override the dataset-wide flow partition (spec.md
// §3, §4.1): two bundles sharing a segment can resolve that segment's flow
// dimension differently.
func (c *compilation) buildRoutingRules() (router.Rules[[]int], []model.EdgeSpec, error) {
	bundleChainRules := make([]router.Rules[[]partitioncross.EdgeKey], len(c.sdd.Bundles))
	for bi, b := range c.sdd.Bundles {
		flowPartition := b.FlowPartition
		if flowPartition == nil {
			flowPartition = c.sdd.FlowPartition
		}

		segIdx := c.graph.BundleSegments[bi]
		chain := make([]router.Rules[partitioncross.EdgeKey], len(segIdx))
		for j, si := range segIdx {
			seg := c.graph.Segments[si]
			chain[j] = partitioncross.BuildSegmentRouting(
				seg.From, c.partitionOf(seg.From),
				seg.To, c.partitionOf(seg.To),
				flowPartition,
				c.sdd.TimePartition,
			)
		}
		bundleChainRules[bi] = partitioncross.MergeSegmentChain(chain)
	}

	edges, edgeIndex := extractEdgeSpecs(c.sdd.Bundles, bundleChainRules)

	byBundleID := make(map[model.BundleID]router.Rules[[]int], len(c.sdd.Bundles))
	for bi, b := range c.sdd.Bundles {
		byBundleID[b.ID] = router.MapRules(bundleChainRules[bi], func(keys []partitioncross.EdgeKey) []int {
			ids := make([]int, len(keys))
			for i, k := range keys {
				ids[i] = edgeIndex[k]
			}
			return ids
		})
	}

	selectionRules := router.BuildSelectionRules(c.sdd.Bundles, c.selectionQuery)

	indexed := router.ExpandRules(selectionRules, func(match router.BundleMatch) router.Rules[[]int] {
		switch {
		case match.IsPair:
			from := byBundleID[match.FromElsewhere]
			to := byBundleID[match.ToElsewhere]
			return router.ExpandProduct(from, to, func(a, b []int) []int {
				out := make([]int, 0, len(a)+len(b))
				out = append(out, a...)
				out = append(out, b...)
				return out
			})
		case match.IsSingle:
			return byBundleID[match.Single]
		default:
			return nil
		}
	})

	return indexed, edges, nil
}

// selectionQuery builds the Query a row must satisfy for bundle to claim
// it: source/target membership in the bundle's endpoint process sets (or
// exclusion of the far side's set, for an Elsewhere bundle), intersected
// with any static constraints its flow_selection decomposes into.
func (c *compilation) selectionQuery(b *model.Bundle) router.Query {
	var sourceIDs, targetIDs []string
	if !b.FromElsewhere() {
		sourceIDs = c.processesOf(b.Source.ID())
	}
	if !b.ToElsewhere() {
		targetIDs = c.processesOf(b.Target.ID())
	}
	filters := c.flowSelectionQuery(b.FlowSelection)
	return router.BuildSelectionQuery(b, sourceIDs, targetIDs, filters)
}

// partitionOf returns the partition governing sub-labels for nodeID's side
// of a segment, or nil for the Elsewhere sentinel ("").
func (c *compilation) partitionOf(nodeID string) *model.Partition {
	if nodeID == "" {
		return nil
	}
	return c.sdd.Nodes[nodeID].Partition()
}

// processesOf returns the raw process ids a ProcessGroup node selects, or
// nil for a Waypoint (which selects none).
func (c *compilation) processesOf(nodeID string) []string {
	n := c.sdd.Nodes[nodeID]
	if n.ProcessGroup != nil {
		return n.ProcessGroup.Processes
	}
	return nil
}

// extractEdgeSpecs deduplicates edges by EdgeKey (not by bundle — multiple
// bundles sharing a segment share an edge), assigning each a sequential id
// in spec.md §4.3's mandated order: bundles are walked in declaration order,
// and within a bundle its chain rules are already in (segment, src_sub,
// tgt_sub, flow, time) order because that is the nesting order
// BuildSegmentRouting and MergeSegmentChain build them in. A key already
// seen (shared by an earlier bundle's chain) keeps its first-assigned id and
// simply gains the later bundle to its BundleIDs. Ported from
// combined_router.py's _extract_edge_specs.
func extractEdgeSpecs(bundles []model.Bundle, bundleChainRules []router.Rules[[]partitioncross.EdgeKey]) ([]model.EdgeSpec, map[partitioncross.EdgeKey]int) {
	bundlesByKey := map[partitioncross.EdgeKey]map[model.BundleID]bool{}
	var keyOrder []partitioncross.EdgeKey

	for bi, rules := range bundleChainRules {
		bid := bundles[bi].ID
		for _, r := range rules {
			for _, key := range r.Label {
				set, ok := bundlesByKey[key]
				if !ok {
					set = map[model.BundleID]bool{}
					bundlesByKey[key] = set
					keyOrder = append(keyOrder, key)
				}
				set[bid] = true
			}
		}
	}

	edgeIndex := make(map[partitioncross.EdgeKey]int, len(keyOrder))
	edges := make([]model.EdgeSpec, 0, len(keyOrder))
	for _, key := range keyOrder {
		ids := make([]model.BundleID, 0, len(bundlesByKey[key]))
		for id := range bundlesByKey[key] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		edgeIndex[key] = len(edges)
		edges = append(edges, model.EdgeSpec{
			ID:        len(edges),
			Source:    nilIfEmpty(key.Source),
			Target:    nilIfEmpty(key.Target),
			Type:      key.Flow,
			Time:      key.Time,
			BundleIDs: ids,
		})
	}
	return edges, edgeIndex
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
