package model

import orderedmap "github.com/wk8/go-ordered-map/v2"

// WeaverSpecVersion is the fixed version tag stamped onto every compiled
// WeaverSpec (spec.md §4.5 step 8).
const WeaverSpecVersion = "2.0"

// NodeSpec is the compiled description of a single node in the WSpec.
type NodeSpec struct {
	ID        string
	Kind      NodeKind
	Title     string
	Direction Direction
	Hidden    bool
	Style     string
	Group     string // owning GroupSpec id, "" if none
}

// NodeKind distinguishes process nodes (which came from a ProcessGroup)
// from waypoint nodes.
type NodeKind string

const (
	NodeKindProcess  NodeKind = "process"
	NodeKindWaypoint NodeKind = "waypoint"
)

// GroupSpec records the sub-nodes a single SDD node expanded into (via
// partitioning), for nesting the diagram's rendered groups.
type GroupSpec struct {
	ID      string
	Title   string
	Members []string // ordered sub-node ids
}

// EdgeSpec is a concrete, compiled (source-sub, target-sub, type, time)
// edge. Source and Target are nil for Elsewhere edges.
type EdgeSpec struct {
	ID        int
	Source    *string
	Target    *string
	Type      string // from flow partition, or "*"
	Time      string // from time partition, or "*"
	BundleIDs []BundleID
}

// Aggregation is a measure's combining function.
type Aggregation string

const (
	AggregationSum  Aggregation = "sum"
	AggregationMean Aggregation = "mean"
)

// MeasureSpec names a data column and how to aggregate it per edge.
type MeasureSpec struct {
	Column      string
	Aggregation Aggregation
}

// ColorSpecKind distinguishes the two DisplaySpec color strategies.
type ColorSpecKind string

const (
	ColorKindCategorical  ColorSpecKind = "categorical"
	ColorKindQuantitative ColorSpecKind = "quantitative"
)

// ColorSpec is either categorical (exact value -> hex lookup) or
// quantitative (palette interpolation over a numeric domain).
type ColorSpec struct {
	Kind ColorSpecKind

	// Categorical fields.
	Attr    string
	Lookup  map[string]string
	Default string

	// Quantitative fields.
	QuantAttr string
	Intensity *string // optional normalising measure
	DomainMin float64
	DomainMax float64
	Palette   []string
}

// DisplaySpec configures link width and colour.
type DisplaySpec struct {
	LinkWidth string
	LinkColor ColorSpec
}

// WeaverSpec is the complete, frozen, data-independent compiled plan.
// NodeMap preserves insertion order (the order nodes were first produced by
// the compiler) so that serialization is deterministic across runs, per
// spec.md §8 property 2 — plain Go maps make no such guarantee.
type WeaverSpec struct {
	Version  string
	NodeMap  *orderedmap.OrderedMap[string, NodeSpec]
	Groups   []GroupSpec
	Edges    []EdgeSpec
	Ordering Ordering
	Tree     TreeNode
	Measures []MeasureSpec
	Display  DisplaySpec

	// RuntimeFilters maps a synthetic dispatch attribute ("__expr_0", ...)
	// to the flow_selection source it stands for, for the rare selection
	// predicate Decompose cannot statically reduce to Includes/Excludes
	// constraints (spec.md §9 Open Question (b)). The executor evaluates
	// each source once per row and feeds the boolean back as that
	// attribute's value, so the decision tree can dispatch on it exactly
	// like any other attribute.
	RuntimeFilters map[string]string
}

// Node looks up a node by id, mirroring NodeMap.Get for callers that don't
// need ordered-map iteration.
func (w *WeaverSpec) Node(id string) (NodeSpec, bool) {
	return w.NodeMap.Get(id)
}
