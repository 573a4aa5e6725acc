package compiler

import (
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rendis/weaver/internal/model"
	"github.com/rendis/weaver/internal/router"
	"github.com/rendis/weaver/internal/viewgraph"
	"github.com/rendis/weaver/pkg/schema"
)

// compilation carries the intermediate state threaded through a single
// Compile call.
type compilation struct {
	sdd           *model.SankeyDefinition
	graph         *viewgraph.Graph
	filterQueries map[string]router.Query
}

// orderedNodeIDs returns every node id named in sdd's Ordering, in
// declaration traversal order (layer, then band, then position) — the
// order NodeMap and Groups are built in, which fixes WeaverSpec
// serialization order (spec.md §8 property 2).
func orderedNodeIDs(sdd *model.SankeyDefinition) []string {
	var ids []string
	for _, band := range sdd.Ordering {
		for _, lane := range band {
			ids = append(ids, lane...)
		}
	}
	return ids
}

// buildNodesAndGroups constructs the NodeMap and GroupSpec slice: every
// declared node expands into one sub-node per partition group (prefixed
// "nodeID^label"), plus an implicit "nodeID^_" default bucket, or — when the
// node isn't partitioned — a single sub-node whose id is just the node id
// itself (spec.md §4.5 step 3: unpartitioned sub-nodes reuse the node id,
// they don't grow a "^*" suffix) — mirrored by subIDs so the ordering
// rewrite can look the expansion back up by node id.
func (c *compilation) buildNodesAndGroups() (*orderedmap.OrderedMap[string, model.NodeSpec], []model.GroupSpec, map[string][]string) {
	nodeMap := orderedmap.New[string, model.NodeSpec]()
	var groups []model.GroupSpec
	subIDs := make(map[string][]string)

	for _, id := range orderedNodeIDs(c.sdd) {
		n := c.sdd.Nodes[id]
		kind := model.NodeKindProcess
		if n.IsWaypoint() {
			kind = model.NodeKindWaypoint
		}

		partition := n.Partition()
		var members []string
		if partition == nil {
			sub := id
			members = []string{sub}
			nodeMap.Set(sub, model.NodeSpec{
				ID: sub, Kind: kind, Title: n.Title(), Direction: n.Direction(), Style: n.Style(),
			})
		} else {
			labels := append(append([]string{}, partition.Labels()...), "_")
			for _, label := range labels {
				sub := id + "^" + label
				members = append(members, sub)
				nodeMap.Set(sub, model.NodeSpec{
					ID: sub, Kind: kind, Title: label, Direction: n.Direction(), Style: n.Style(), Group: id,
				})
			}
			groups = append(groups, model.GroupSpec{ID: id, Title: n.Title(), Members: members})
		}
		subIDs[id] = members
	}

	return nodeMap, groups, subIDs
}

// rewriteOrdering expands sdd's Ordering (one entry per declared node) into
// an ordering over sub-node ids (one entry per partition group), preserving
// layer/band structure and each node's position within its band.
func rewriteOrdering(sdd *model.SankeyDefinition, subIDs map[string][]string) model.Ordering {
	out := make(model.Ordering, len(sdd.Ordering))
	for i, band := range sdd.Ordering {
		out[i] = make([][]string, len(band))
		for j, lane := range band {
			var expanded []string
			for _, id := range lane {
				expanded = append(expanded, subIDs[id]...)
			}
			out[i][j] = expanded
		}
	}
	return out
}

// validateGroupMembership checks that every partition group's declared
// values, for a ProcessGroup node, are a subset of the node's own selected
// processes — a group claiming a process id the node never selected can
// never match a row, which is almost always an authoring mistake worth
// rejecting at compile time rather than silently producing an empty edge.
func validateGroupMembership(sdd *model.SankeyDefinition) error {
	for id, n := range sdd.Nodes {
		if n.ProcessGroup == nil || n.ProcessGroup.Partition == nil {
			continue
		}
		owned := make(map[string]bool, len(n.ProcessGroup.Processes))
		for _, p := range n.ProcessGroup.Processes {
			owned[p] = true
		}
		var stray []string
		for _, v := range n.ProcessGroup.Partition.AllValues() {
			if !owned[v] {
				stray = append(stray, v)
			}
		}
		if len(stray) > 0 {
			sort.Strings(stray)
			return schema.NewWeaverError(schema.CodeSchemaValidation,
				fmt.Sprintf("node %q partitions values never selected by its process group: %v", id, stray)).
				WithNode(id)
		}
	}
	return nil
}
