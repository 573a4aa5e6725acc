// Package model defines the SDD (input) and WSpec (output) data types
// described in spec.md §3, plus the decision tree used by the router.
package model

// Direction is the horizontal placement of a node: Left or Right.
type Direction string

const (
	DirectionLeft  Direction = "L"
	DirectionRight Direction = "R"
)

// ProcessGroup selects a set of raw process ids from the flow data and
// optionally partitions them into labelled sub-nodes.
type ProcessGroup struct {
	ID        string
	Processes []string // raw process ids this group selects
	Partition *Partition
	Direction Direction
	Title     string
	Style     string
}

// Waypoint is a routing-only node: it has no process selection.
type Waypoint struct {
	ID        string
	Partition *Partition
	Direction Direction
	Title     string
	Style     string
}

// BundleID identifies a Bundle within a SankeyDefinition. Bundles are
// tagged with their declaration index so tie-breaking during routing and
// ViewGraph construction is deterministic (spec.md §4.1).
type BundleID int

// Bundle is a declared route of flows from one node to another, optionally
// via a chain of waypoints, optionally restricted by a flow_selection
// predicate and overriding the default flow partition for this route.
type Bundle struct {
	ID            BundleID
	Source        NodeRef // may be Elsewhere
	Target        NodeRef // may be Elsewhere
	Waypoints     []string
	FlowSelection string // e.g. `material == "steel"`; empty = no filter
	FlowPartition *Partition
}

// FromElsewhere reports whether this bundle originates at the system
// boundary.
func (b *Bundle) FromElsewhere() bool { return b.Source.IsElsewhere() }

// ToElsewhere reports whether this bundle terminates at the system
// boundary.
func (b *Bundle) ToElsewhere() bool { return b.Target.IsElsewhere() }

// Ordering fixes horizontal layer, vertical band within the layer, and
// vertical position within the band, as a three-level nested sequence.
// The nesting is semantic (spec.md §9): flattening it would lose the band
// grouping layout consumers need.
type Ordering [][][]string

// Nodes declared by an SDD: either a ProcessGroup or a Waypoint.
type SDDNode struct {
	ProcessGroup *ProcessGroup
	Waypoint     *Waypoint
}

// ID returns the declared node id, regardless of which variant is set.
func (n SDDNode) ID() string {
	if n.ProcessGroup != nil {
		return n.ProcessGroup.ID
	}
	if n.Waypoint != nil {
		return n.Waypoint.ID
	}
	return ""
}

// Partition returns the node's partition, if any, regardless of variant.
func (n SDDNode) Partition() *Partition {
	if n.ProcessGroup != nil {
		return n.ProcessGroup.Partition
	}
	if n.Waypoint != nil {
		return n.Waypoint.Partition
	}
	return nil
}

// Direction returns the node's layout direction, regardless of variant.
func (n SDDNode) Direction() Direction {
	if n.ProcessGroup != nil {
		return n.ProcessGroup.Direction
	}
	if n.Waypoint != nil {
		return n.Waypoint.Direction
	}
	return DirectionRight
}

// Title returns the node's display title, regardless of variant.
func (n SDDNode) Title() string {
	if n.ProcessGroup != nil {
		return n.ProcessGroup.Title
	}
	if n.Waypoint != nil {
		return n.Waypoint.Title
	}
	return ""
}

// Style returns the node's display style, regardless of variant.
func (n SDDNode) Style() string {
	if n.ProcessGroup != nil {
		return n.ProcessGroup.Style
	}
	if n.Waypoint != nil {
		return n.Waypoint.Style
	}
	return ""
}

// IsWaypoint reports whether this SDD node is a Waypoint (vs. a
// ProcessGroup).
func (n SDDNode) IsWaypoint() bool { return n.Waypoint != nil }

// SankeyDefinition is the declarative structure description: the complete
// set of nodes, the bundles connecting them, the display ordering, and the
// default flow/time partitions applied where a bundle doesn't override
// them.
type SankeyDefinition struct {
	Nodes         map[string]SDDNode
	Bundles       []Bundle
	Ordering      Ordering
	FlowPartition *Partition
	TimePartition *Partition
}
