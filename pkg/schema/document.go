// Package schema also defines the wire-format documents spec.md §6
// describes: the JSON shape an SDD or a compiled WSpec takes at the
// portable boundary, plus conversions to and from the internal model types.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rendis/weaver/internal/model"
)

// SDDDocument is the wire shape of a SankeyDefinition.
type SDDDocument struct {
	Nodes         map[string]SDDNodeDocument `json:"nodes"`
	Bundles       []BundleDocument           `json:"bundles"`
	Ordering      [][][]string               `json:"ordering"`
	FlowPartition *PartitionDocument         `json:"flow_partition,omitempty"`
	TimePartition *PartitionDocument         `json:"time_partition,omitempty"`
}

// SDDNodeDocument is the wire shape of a ProcessGroup or Waypoint.
type SDDNodeDocument struct {
	Kind      string             `json:"kind"` // "process_group" | "waypoint"
	Processes []string           `json:"processes,omitempty"`
	Partition *PartitionDocument `json:"partition,omitempty"`
	Direction string             `json:"direction"` // "L" | "R"
	Title     string             `json:"title,omitempty"`
	Style     string             `json:"style,omitempty"`
}

// BundleDocument is the wire shape of a Bundle. Source/Target are null for
// Elsewhere, mirroring EdgeDocument's convention (spec.md §6).
type BundleDocument struct {
	Source        *string            `json:"source"`
	Target        *string            `json:"target"`
	Waypoints     []string           `json:"waypoints,omitempty"`
	FlowSelection string             `json:"flow_selection,omitempty"`
	FlowPartition *PartitionDocument `json:"flow_partition,omitempty"`
}

// PartitionDocument is the wire shape of a Partition.
type PartitionDocument struct {
	Dimension string          `json:"dimension"`
	Groups    []GroupDocument `json:"groups"`
}

// GroupDocument is the wire shape of a single Partition Group.
type GroupDocument struct {
	Label  string   `json:"label"`
	Values []string `json:"values"`
}

// WSpecDocument is the wire shape of a WeaverSpec, exactly as laid out in
// spec.md §6.
type WSpecDocument struct {
	Version     string                    `json:"version"`
	Nodes       map[string]NodeDocument   `json:"nodes"`
	Groups      []GroupSpecDocument       `json:"groups"`
	Edges       []EdgeDocument            `json:"edges"`
	Ordering    [][][]string              `json:"ordering"`
	Measures    []MeasureDocument         `json:"measures"`
	Display     DisplayDocument           `json:"display"`
	RoutingTree TreeDocument              `json:"routing_tree"`

	// RuntimeFilters carries a WeaverSpec's synthetic dispatch attributes
	// (spec.md §9 Open Question (b)) across the wire, so a spec round-tripped
	// through the cache or an external caller still evaluates its
	// non-decomposable flow_selection expressions at execute time.
	RuntimeFilters map[string]string `json:"runtime_filters,omitempty"`
}

// NodeDocument is the wire shape of a NodeSpec.
type NodeDocument struct {
	Title     string `json:"title"`
	Type      string `json:"type"` // "process" | "waypoint"
	Group     string `json:"group,omitempty"`
	Style     string `json:"style,omitempty"`
	Direction string `json:"direction"`
	Hidden    bool   `json:"hidden,omitempty"`
}

// GroupSpecDocument is the wire shape of a GroupSpec.
type GroupSpecDocument struct {
	ID    string   `json:"id"`
	Title string   `json:"title,omitempty"`
	Nodes []string `json:"nodes"`
}

// EdgeDocument is the wire shape of an EdgeSpec.
type EdgeDocument struct {
	Source    *string `json:"source"`
	Target    *string `json:"target"`
	Type      string  `json:"type"`
	Time      string  `json:"time"`
	BundleIDs []int   `json:"bundle_ids"`
}

// MeasureDocument is the wire shape of a MeasureSpec.
type MeasureDocument struct {
	Column      string `json:"column"`
	Aggregation string `json:"aggregation"` // "sum" | "mean"
}

// ColorSpecDocument is the wire shape of a ColorSpec: either categorical or
// quantitative, distinguished by Type.
type ColorSpecDocument struct {
	Type      string            `json:"type"` // "categorical" | "quantitative"
	Attr      string            `json:"attr"`
	Lookup    map[string]string `json:"lookup,omitempty"`
	Default   string            `json:"default,omitempty"`
	Intensity *string           `json:"intensity,omitempty"`
	Domain    []float64         `json:"domain,omitempty"`
	Palette   []string          `json:"palette,omitempty"`
}

// DisplayDocument is the wire shape of a DisplaySpec.
type DisplayDocument struct {
	LinkWidth string            `json:"link_width"`
	LinkColor ColorSpecDocument `json:"link_color"`
}

// TreeDocument is the wire shape of a routing tree Node: a leaf carries
// Value, a branch carries Attr/Branches/Default (spec.md §6).
type TreeDocument struct {
	Value    []int                   `json:"value,omitempty"`
	Attr     string                  `json:"attr,omitempty"`
	Branches map[string]TreeDocument `json:"branches,omitempty"`
	Default  *TreeDocument           `json:"default,omitempty"`
}

// MarshalJSON renders the document as JSON directly; a plain struct marshal
// would work too, but the explicit method keeps the leaf/branch shape
// obviously intentional at the call site.
func (t TreeDocument) MarshalJSON() ([]byte, error) {
	type alias TreeDocument
	return json.Marshal(alias(t))
}

// SDDToDocument converts a SankeyDefinition to its wire form.
func SDDToDocument(sdd *model.SankeyDefinition) SDDDocument {
	nodes := make(map[string]SDDNodeDocument, len(sdd.Nodes))
	for id, n := range sdd.Nodes {
		doc := SDDNodeDocument{
			Direction: string(n.Direction()),
			Title:     n.Title(),
			Style:     n.Style(),
			Partition: partitionToDocument(n.Partition()),
		}
		if n.IsWaypoint() {
			doc.Kind = "waypoint"
		} else {
			doc.Kind = "process_group"
			doc.Processes = n.ProcessGroup.Processes
		}
		nodes[id] = doc
	}

	bundles := make([]BundleDocument, len(sdd.Bundles))
	for i, b := range sdd.Bundles {
		bundles[i] = BundleDocument{
			Source:        nodeRefToDocument(b.Source),
			Target:        nodeRefToDocument(b.Target),
			Waypoints:     b.Waypoints,
			FlowSelection: b.FlowSelection,
			FlowPartition: partitionToDocument(b.FlowPartition),
		}
	}

	return SDDDocument{
		Nodes:         nodes,
		Bundles:       bundles,
		Ordering:      orderingToDocument(sdd.Ordering),
		FlowPartition: partitionToDocument(sdd.FlowPartition),
		TimePartition: partitionToDocument(sdd.TimePartition),
	}
}

func nodeRefToDocument(ref model.NodeRef) *string {
	if ref.IsElsewhere() {
		return nil
	}
	id := ref.ID()
	return &id
}

func partitionToDocument(p *model.Partition) *PartitionDocument {
	if p == nil {
		return nil
	}
	groups := make([]GroupDocument, len(p.Groups))
	for i, g := range p.Groups {
		groups[i] = GroupDocument{Label: g.Label, Values: append([]string{}, g.Values...)}
	}
	return &PartitionDocument{Dimension: p.Dimension, Groups: groups}
}

func orderingToDocument(o model.Ordering) [][][]string {
	out := make([][][]string, len(o))
	for i, layer := range o {
		out[i] = make([][]string, len(layer))
		for j, band := range layer {
			out[i][j] = append([]string{}, band...)
		}
	}
	return out
}

// WSpecToDocument converts a WeaverSpec to its wire form.
func WSpecToDocument(spec *model.WeaverSpec) WSpecDocument {
	nodes := make(map[string]NodeDocument, spec.NodeMap.Len())
	for pair := spec.NodeMap.Oldest(); pair != nil; pair = pair.Next() {
		n := pair.Value
		nodes[pair.Key] = NodeDocument{
			Title: n.Title, Type: string(n.Kind), Group: n.Group,
			Style: n.Style, Direction: string(n.Direction), Hidden: n.Hidden,
		}
	}

	groups := make([]GroupSpecDocument, len(spec.Groups))
	for i, g := range spec.Groups {
		groups[i] = GroupSpecDocument{ID: g.ID, Title: g.Title, Nodes: g.Members}
	}

	edges := make([]EdgeDocument, len(spec.Edges))
	for i, e := range spec.Edges {
		ids := make([]int, len(e.BundleIDs))
		for j, b := range e.BundleIDs {
			ids[j] = int(b)
		}
		edges[i] = EdgeDocument{Source: e.Source, Target: e.Target, Type: e.Type, Time: e.Time, BundleIDs: ids}
	}

	measures := make([]MeasureDocument, len(spec.Measures))
	for i, m := range spec.Measures {
		measures[i] = MeasureDocument{Column: m.Column, Aggregation: string(m.Aggregation)}
	}

	return WSpecDocument{
		Version:     spec.Version,
		Nodes:       nodes,
		Groups:      groups,
		Edges:       edges,
		Ordering:    orderingToDocument(spec.Ordering),
		Measures:    measures,
		Display:        displayToDocument(spec.Display),
		RoutingTree:    treeToDocument(&spec.Tree),
		RuntimeFilters: spec.RuntimeFilters,
	}
}

func displayToDocument(d model.DisplaySpec) DisplayDocument {
	cs := ColorSpecDocument{Attr: d.LinkColor.Attr}
	switch d.LinkColor.Kind {
	case model.ColorKindCategorical:
		cs.Type = "categorical"
		cs.Lookup = d.LinkColor.Lookup
		cs.Default = d.LinkColor.Default
	case model.ColorKindQuantitative:
		cs.Type = "quantitative"
		cs.Attr = d.LinkColor.QuantAttr
		cs.Intensity = d.LinkColor.Intensity
		cs.Domain = []float64{d.LinkColor.DomainMin, d.LinkColor.DomainMax}
		cs.Palette = d.LinkColor.Palette
	}
	return DisplayDocument{LinkWidth: d.LinkWidth, LinkColor: cs}
}

func treeToDocument(n *model.TreeNode) TreeDocument {
	if n.Leaf {
		ids := append([]int{}, n.EdgeIDs...)
		sort.Ints(ids)
		return TreeDocument{Value: ids}
	}
	branches := make(map[string]TreeDocument, len(n.Branches))
	for val, child := range n.Branches {
		branches[val] = treeToDocument(child)
	}
	def := treeToDocument(n.Default)
	return TreeDocument{Attr: n.Attr, Branches: branches, Default: &def}
}

// DocumentToSDD converts a wire-format SDDDocument back into a
// SankeyDefinition, the reverse of SDDToDocument. It is what pkg/mcp and
// cmd/weaver call after decoding a caller-supplied JSON document, before
// handing it to the compiler.
func DocumentToSDD(doc SDDDocument) (*model.SankeyDefinition, error) {
	nodes := make(map[string]model.SDDNode, len(doc.Nodes))
	for id, n := range doc.Nodes {
		partition := documentToPartition(n.Partition)
		direction := model.DirectionRight
		if n.Direction == "L" {
			direction = model.DirectionLeft
		}
		switch n.Kind {
		case "waypoint":
			nodes[id] = model.SDDNode{Waypoint: &model.Waypoint{
				ID: id, Partition: partition, Direction: direction, Title: n.Title, Style: n.Style,
			}}
		case "process_group":
			nodes[id] = model.SDDNode{ProcessGroup: &model.ProcessGroup{
				ID: id, Processes: n.Processes, Partition: partition, Direction: direction, Title: n.Title, Style: n.Style,
			}}
		default:
			return nil, fmt.Errorf("node %q: unknown kind %q", id, n.Kind)
		}
	}

	bundles := make([]model.Bundle, len(doc.Bundles))
	for i, b := range doc.Bundles {
		bundles[i] = model.Bundle{
			ID:            model.BundleID(i),
			Source:        documentToNodeRef(b.Source),
			Target:        documentToNodeRef(b.Target),
			Waypoints:     b.Waypoints,
			FlowSelection: b.FlowSelection,
			FlowPartition: documentToPartition(b.FlowPartition),
		}
	}

	return &model.SankeyDefinition{
		Nodes:         nodes,
		Bundles:       bundles,
		Ordering:      documentToOrdering(doc.Ordering),
		FlowPartition: documentToPartition(doc.FlowPartition),
		TimePartition: documentToPartition(doc.TimePartition),
	}, nil
}

func documentToNodeRef(id *string) model.NodeRef {
	if id == nil {
		return model.Elsewhere
	}
	return model.Node(*id)
}

func documentToPartition(p *PartitionDocument) *model.Partition {
	if p == nil {
		return nil
	}
	groups := make([]model.Group, len(p.Groups))
	for i, g := range p.Groups {
		groups[i] = model.Group{Label: g.Label, Values: append([]string{}, g.Values...)}
	}
	return &model.Partition{Dimension: p.Dimension, Groups: groups}
}

func documentToOrdering(o [][][]string) model.Ordering {
	out := make(model.Ordering, len(o))
	for i, layer := range o {
		out[i] = make([][]string, len(layer))
		for j, band := range layer {
			out[i][j] = append([]string{}, band...)
		}
	}
	return out
}

// DocumentToWSpec converts a wire-format WSpecDocument back into a
// WeaverSpec, the reverse of WSpecToDocument. Used to rehydrate a spec read
// back from the WSpec cache or supplied directly to weaver.execute.
func DocumentToWSpec(doc WSpecDocument) (*model.WeaverSpec, error) {
	nm := orderedmap.New[string, model.NodeSpec]()
	for _, id := range sortedKeys(doc.Nodes) {
		n := doc.Nodes[id]
		direction := model.DirectionRight
		if n.Direction == "L" {
			direction = model.DirectionLeft
		}
		kind := model.NodeKindProcess
		if n.Type == "waypoint" {
			kind = model.NodeKindWaypoint
		}
		nm.Set(id, model.NodeSpec{
			ID: id, Kind: kind, Title: n.Title, Direction: direction,
			Hidden: n.Hidden, Style: n.Style, Group: n.Group,
		})
	}

	groups := make([]model.GroupSpec, len(doc.Groups))
	for i, g := range doc.Groups {
		groups[i] = model.GroupSpec{ID: g.ID, Title: g.Title, Members: g.Nodes}
	}

	edges := make([]model.EdgeSpec, len(doc.Edges))
	for i, e := range doc.Edges {
		ids := make([]model.BundleID, len(e.BundleIDs))
		for j, b := range e.BundleIDs {
			ids[j] = model.BundleID(b)
		}
		edges[i] = model.EdgeSpec{ID: i, Source: e.Source, Target: e.Target, Type: e.Type, Time: e.Time, BundleIDs: ids}
	}

	measures := make([]model.MeasureSpec, len(doc.Measures))
	for i, m := range doc.Measures {
		measures[i] = model.MeasureSpec{Column: m.Column, Aggregation: model.Aggregation(m.Aggregation)}
	}

	display, err := DocumentToDisplay(doc.Display)
	if err != nil {
		return nil, err
	}

	tree, err := documentToTree(doc.RoutingTree)
	if err != nil {
		return nil, err
	}

	return &model.WeaverSpec{
		Version:        doc.Version,
		NodeMap:        nm,
		Groups:         groups,
		Edges:          edges,
		Ordering:       documentToOrdering(doc.Ordering),
		Tree:           *tree,
		Measures:       measures,
		Display:        display,
		RuntimeFilters: doc.RuntimeFilters,
	}, nil
}

// DocumentToDisplay converts a wire-format DisplayDocument back into a
// DisplaySpec. Exported separately from DocumentToWSpec since callers (the
// CLI's compile subcommand, weaver.compile's optional display argument)
// often have a display override without a whole WSpecDocument on hand.
func DocumentToDisplay(d DisplayDocument) (model.DisplaySpec, error) {
	cs := model.ColorSpec{Attr: d.LinkColor.Attr, Lookup: d.LinkColor.Lookup, Default: d.LinkColor.Default}
	switch d.LinkColor.Type {
	case "":
		// No colour spec: WSpecToDocument writes an empty type for one.
	case "categorical":
		cs.Kind = model.ColorKindCategorical
	case "quantitative":
		cs.Kind = model.ColorKindQuantitative
		cs.QuantAttr = d.LinkColor.Attr
		cs.Intensity = d.LinkColor.Intensity
		if len(d.LinkColor.Domain) == 2 {
			cs.DomainMin, cs.DomainMax = d.LinkColor.Domain[0], d.LinkColor.Domain[1]
		}
		cs.Palette = d.LinkColor.Palette
	default:
		return model.DisplaySpec{}, fmt.Errorf("display.link_color: unknown type %q", d.LinkColor.Type)
	}
	return model.DisplaySpec{LinkWidth: d.LinkWidth, LinkColor: cs}, nil
}

func documentToTree(t TreeDocument) (*model.TreeNode, error) {
	if t.Branches == nil && t.Default == nil {
		return model.NewLeaf(t.Value), nil
	}
	branches := make(map[string]*model.TreeNode, len(t.Branches))
	for val, child := range t.Branches {
		n, err := documentToTree(child)
		if err != nil {
			return nil, err
		}
		branches[val] = n
	}
	if t.Default == nil {
		return nil, fmt.Errorf("routing_tree: branch node %q missing default", t.Attr)
	}
	def, err := documentToTree(*t.Default)
	if err != nil {
		return nil, err
	}
	return model.NewBranch(t.Attr, branches, def), nil
}

func sortedKeys(m map[string]NodeDocument) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
