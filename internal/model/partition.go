package model

// Group is one labelled bucket of a Partition: a name plus the explicit,
// statically declared set of raw values (process ids, or values of a data
// column) that belong to it. Values are declared rather than discovered
// from data so that a compiled WeaverSpec stays independent of any
// particular dataset (spec.md §8 property 2) — the same partition compiles
// to the same routing rules regardless of what a given execution's rows
// contain.
type Group struct {
	Label  string
	Values []string
}

// Partition is a dimension name plus an ordered list of labelled groups.
// Order matters: it is preserved into sub-node ordering (spec.md §4.5 step 6)
// and into edge id assignment (spec.md §4.3). A raw value not claimed by any
// group falls into an implicit "_" default bucket at compile time.
type Partition struct {
	Dimension string
	Groups    []Group
}

// Labels returns the group labels in declaration order.
func (p *Partition) Labels() []string {
	if p == nil {
		return nil
	}
	labels := make([]string, len(p.Groups))
	for i, g := range p.Groups {
		labels[i] = g.Label
	}
	return labels
}

// LabelFor returns the label of the first group whose declared values
// include value, and ok=true. If no group claims it, ok is false (it
// belongs to the implicit default bucket).
func (p *Partition) LabelFor(value string) (label string, ok bool) {
	if p == nil {
		return "", false
	}
	for _, g := range p.Groups {
		for _, v := range g.Values {
			if v == value {
				return g.Label, true
			}
		}
	}
	return "", false
}

// AllValues returns every value declared across every group, in group then
// declaration order.
func (p *Partition) AllValues() []string {
	if p == nil {
		return nil
	}
	var out []string
	for _, g := range p.Groups {
		out = append(out, g.Values...)
	}
	return out
}

// SimplePartition builds a Partition whose groups each claim one or more
// exact values of dimension, in the given label order.
func SimplePartition(dimension string, buckets map[string][]string, order []string) *Partition {
	groups := make([]Group, 0, len(order))
	for _, label := range order {
		groups = append(groups, Group{Label: label, Values: buckets[label]})
	}
	return &Partition{Dimension: dimension, Groups: groups}
}
