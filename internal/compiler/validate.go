package compiler

import (
	"fmt"
	"sort"

	"github.com/rendis/weaver/internal/model"
	"github.com/rendis/weaver/pkg/schema"
)

// Validate checks the structural well-formedness of sdd before compilation:
// every id a bundle or the ordering references must name a declared node
// (or Elsewhere), and every declared node must appear in the ordering
// exactly once. Ported from sankeyview's SankeyDefinition._validate_bundles
// / _validate_ordering.
func Validate(sdd *model.SankeyDefinition) error {
	if err := validateBundles(sdd); err != nil {
		return err
	}
	return validateOrdering(sdd)
}

func validateBundles(sdd *model.SankeyDefinition) error {
	for i, b := range sdd.Bundles {
		if !b.Source.IsElsewhere() {
			if _, ok := sdd.Nodes[b.Source.ID()]; !ok {
				return schema.NewWeaverError(schema.CodeUnknownNode,
					fmt.Sprintf("bundle %d: unknown source node %q", i, b.Source.ID()))
			}
		}
		if !b.Target.IsElsewhere() {
			if _, ok := sdd.Nodes[b.Target.ID()]; !ok {
				return schema.NewWeaverError(schema.CodeUnknownNode,
					fmt.Sprintf("bundle %d: unknown target node %q", i, b.Target.ID()))
			}
		}
		for _, wp := range b.Waypoints {
			n, ok := sdd.Nodes[wp]
			if !ok {
				return schema.NewWeaverError(schema.CodeUnknownNode,
					fmt.Sprintf("bundle %d: undeclared waypoint %q", i, wp))
			}
			if !n.IsWaypoint() {
				return schema.NewWeaverError(schema.CodeInvalidWaypoint,
					fmt.Sprintf("bundle %d: node %q used as a waypoint is a process group", i, wp))
			}
		}
	}
	return nil
}

func validateOrdering(sdd *model.SankeyDefinition) error {
	seen := map[string]int{}
	for _, band := range sdd.Ordering {
		for _, lane := range band {
			for _, id := range lane {
				seen[id]++
				if _, ok := sdd.Nodes[id]; !ok {
					return schema.NewWeaverError(schema.CodeUnknownNode,
						fmt.Sprintf("ordering: unknown node %q", id))
				}
			}
		}
	}

	var missing, duplicated []string
	for id := range sdd.Nodes {
		switch seen[id] {
		case 0:
			missing = append(missing, id)
		case 1:
			// ok
		default:
			duplicated = append(duplicated, id)
		}
	}
	sort.Strings(missing)
	sort.Strings(duplicated)

	if len(missing) > 0 {
		return schema.NewWeaverError(schema.CodeIncompleteOrdering,
			fmt.Sprintf("ordering omits declared nodes: %v", missing))
	}
	if len(duplicated) > 0 {
		return schema.NewWeaverError(schema.CodeIncompleteOrdering,
			fmt.Sprintf("ordering places nodes in more than one position: %v", duplicated))
	}
	return nil
}
