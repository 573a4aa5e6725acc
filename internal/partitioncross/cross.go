// Package partitioncross expands a view-graph segment's endpoint and
// flow/time partitions into the concrete (source-sub, target-sub, flow,
// time) edges it resolves to, per spec.md §4.3. It builds on the router
// package's generic Rules algebra but stays a separate component because
// its job — turning Partitions into concrete labelled regions — is
// independent of bundle-selection resolution.
package partitioncross

import (
	"github.com/rendis/weaver/internal/model"
	"github.com/rendis/weaver/internal/router"
)

// EdgeKey is a fully resolved concrete edge for one segment: each field is
// either a prefixed sub-node id ("nodeID^label"), the bare node id itself
// for an unpartitioned node (spec.md §4.5 step 3: "unpartitioned sub-nodes
// reuse the node id"), or "" when that side is the Elsewhere boundary.
// Ported from floweaver's partition_router.py EdgeKey dataclass.
type EdgeKey struct {
	Source string
	Target string
	Flow   string
	Time   string
}

// ExpandPartition expands partition into routing rules over attr: one rule
// per declared group that has at least one value (labelled
// prefix+group.Label; a group with no values gets no rule), plus one default rule
// covering every value of attr the groups don't declare (labelled
// prefix+defaultLabel). A nil partition produces a single unconditional
// rule labelled prefix+"*": the whole dimension is one unpartitioned
// bucket. Because group membership is a statically declared value set
// (model.Group.Values) rather than data-derived, this never needs to scan
// a dataset — the routing rules it returns are identical for every
// execution of the same compiled plan.
//
// Ported from partition_router.py's expand_partition.
func ExpandPartition(partition *model.Partition, attr, prefix, defaultLabel string) router.Rules[string] {
	if partition == nil {
		return router.Rules[string]{{Query: router.Query{}, Label: prefix + "*"}}
	}

	out := make(router.Rules[string], 0, len(partition.Groups)+1)
	for _, g := range partition.Groups {
		if len(g.Values) == 0 {
			continue
		}
		out = append(out, router.Rule[string]{Query: router.Query{attr: router.Includes(g.Values...)}, Label: prefix + g.Label})
	}
	out = append(out, router.Rule[string]{Query: router.Query{attr: router.Excludes(partition.AllValues()...)}, Label: prefix + defaultLabel})
	return out
}

// ExpandProcessSide builds ExpandPartition's rules for one endpoint of a
// segment: nodeID is the declared node id, side is "source" or "target". An
// unpartitioned node yields a single rule labelled with the bare node id
// rather than a "nodeID^*" sub-label, since there is no sub-node to
// disambiguate (spec.md §4.5 step 3).
func ExpandProcessSide(side, nodeID string, partition *model.Partition) router.Rules[string] {
	if partition == nil {
		return router.Rules[string]{{Query: router.Query{}, Label: nodeID}}
	}
	return ExpandPartition(partition, side, nodeID+"^", "_")
}

// BuildSegmentRouting builds the routing rules for one view-graph segment:
// the product of its source sub-label, target sub-label, flow-partition
// label and time-partition label. sourceNodeID/targetNodeID are "" when
// that side is the Elsewhere boundary. flowPartition and timePartition are
// whatever the caller passes for this segment's bundle (the compiler passes
// the bundle's own flow partition when it declares one, else the SDD-level
// default); each is expanded over the row attribute named by its Dimension.
//
// Ported from partition_router.py's build_segment_routing.
func BuildSegmentRouting(
	sourceNodeID string, sourcePartition *model.Partition,
	targetNodeID string, targetPartition *model.Partition,
	flowPartition *model.Partition,
	timePartition *model.Partition,
) router.Rules[EdgeKey] {
	sourceRules := elsewhereOrExpand(sourceNodeID, "source", sourcePartition)
	targetRules := elsewhereOrExpand(targetNodeID, "target", targetPartition)
	flowAttr, timeAttr := "flow", "time"
	if flowPartition != nil {
		flowAttr = flowPartition.Dimension
	}
	if timePartition != nil {
		timeAttr = timePartition.Dimension
	}
	flowRules := ExpandPartition(flowPartition, flowAttr, "", "_")
	timeRules := ExpandPartition(timePartition, timeAttr, "", "_")

	combined := router.ExpandAllRules([]router.Rules[string]{sourceRules, targetRules, flowRules, timeRules})
	return router.MapRules(combined, func(labels []string) EdgeKey {
		return EdgeKey{Source: labels[0], Target: labels[1], Flow: labels[2], Time: labels[3]}
	})
}

func elsewhereOrExpand(nodeID, side string, partition *model.Partition) router.Rules[string] {
	if nodeID == "" {
		return router.Rules[string]{{Query: router.Query{}, Label: ""}}
	}
	return ExpandProcessSide(side, nodeID, partition)
}

// MergeSegmentChain combines the per-segment EdgeKey routing rules for a
// bundle's full chain of segments into a single rule set whose label is
// the ordered slice of EdgeKeys the chain resolves to — one per segment, in
// chain order. Ported from partition_router.py's merge_segment_routings.
func MergeSegmentChain(segments []router.Rules[EdgeKey]) router.Rules[[]EdgeKey] {
	out := router.Rules[[]EdgeKey]{{Query: router.Query{}, Label: nil}}
	for _, seg := range segments {
		out = router.ExpandProduct(out, seg, func(acc []EdgeKey, k EdgeKey) []EdgeKey {
			next := make([]EdgeKey, len(acc)+1)
			copy(next, acc)
			next[len(acc)] = k
			return next
		})
	}
	return out
}
