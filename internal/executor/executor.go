// Package executor implements spec.md §4.6: it consumes a compiled
// WeaverSpec and a flow dataset, routes every row through the decision
// tree, aggregates measures per edge, applies colour, and prunes the
// output down to what the dataset actually touched.
package executor

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr/vm"

	"github.com/rendis/weaver/internal/colour"
	"github.com/rendis/weaver/internal/dataset"
	"github.com/rendis/weaver/internal/expressions"
	"github.com/rendis/weaver/internal/model"
	"github.com/rendis/weaver/pkg/schema"
)

// Execute routes rows through spec's decision tree, aggregates measures,
// and returns the pruned SankeyData. Row iteration is eager: the executor
// is a single pure, synchronous call per spec.md §5, with no suspension or
// cancellation semantics.
func Execute(spec *model.WeaverSpec, rows dataset.Iterator) (*model.SankeyData, error) {
	filters, err := compileRuntimeFilters(spec.RuntimeFilters)
	if err != nil {
		return nil, err
	}

	accum := make([][]int, len(spec.Edges))
	var allRows []dataset.Row

	get := rowGetter(filters)
	for i := 0; rows.Next(); i++ {
		row := rows.Row()
		allRows = append(allRows, row)
		for _, edgeID := range model.Route(&spec.Tree, row, get) {
			accum[edgeID] = append(accum[edgeID], i)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links := make([]model.Link, 0, len(spec.Edges))
	for edgeID, indices := range accum {
		if len(indices) == 0 {
			continue
		}
		edge := spec.Edges[edgeID]

		data, err := aggregate(spec.Measures, allRows, indices)
		if err != nil {
			return nil, err
		}

		linkWidth := data[spec.Display.LinkWidth]
		attrValue := categoricalAttr(spec.Display.LinkColor, edge, data)
		color := colour.Resolve(spec.Display.LinkColor, attrValue, data)

		links = append(links, model.Link{
			Source:        edge.Source,
			Target:        edge.Target,
			Type:          edge.Type,
			Time:          edge.Time,
			LinkWidth:     linkWidth,
			Data:          data,
			Title:         edge.Type,
			Color:         color,
			Opacity:       1.0,
			OriginalFlows: indices,
		})
	}

	return assemble(spec, links)
}

// categoricalAttr resolves the value a categorical ColorSpec reads: the
// named edge field if attr is one of type|source|target|time, otherwise
// the aggregated measure data (spec.md §4.7).
func categoricalAttr(spec model.ColorSpec, edge model.EdgeSpec, data map[string]float64) string {
	if spec.Kind != model.ColorKindCategorical {
		return ""
	}
	switch spec.Attr {
	case "type":
		return edge.Type
	case "time":
		return edge.Time
	case "source":
		if edge.Source != nil {
			return *edge.Source
		}
		return ""
	case "target":
		if edge.Target != nil {
			return *edge.Target
		}
		return ""
	default:
		return fmt.Sprintf("%v", data[spec.Attr])
	}
}

// aggregate computes each MeasureSpec's value over the rows at indices.
// Sum is ordinary addition; mean ignores rows where the column is absent
// (spec.md §4.6 step 3). An unrecognized Aggregation is a malformed-WSpec
// error (spec.md §7), not a silently-wrong default.
func aggregate(measures []model.MeasureSpec, rows []dataset.Row, indices []int) (map[string]float64, error) {
	out := make(map[string]float64, len(measures))
	for _, m := range measures {
		switch m.Aggregation {
		case model.AggregationSum:
			var total float64
			for _, i := range indices {
				if v, ok := rows[i].AsFloat(m.Column); ok {
					total += v
				}
			}
			out[m.Column] = total
		case model.AggregationMean:
			var total float64
			var n int
			for _, i := range indices {
				if v, ok := rows[i].AsFloat(m.Column); ok {
					total += v
					n++
				}
			}
			if n > 0 {
				out[m.Column] = total / float64(n)
			}
		default:
			return nil, schema.NewWeaverError(schema.CodeMeasureError,
				fmt.Sprintf("unknown aggregation %q for measure %q", m.Aggregation, m.Column))
		}
	}
	return out, nil
}

// compileRuntimeFilters compiles every synthetic-attribute expression in a
// WeaverSpec's RuntimeFilters once per Execute call, rather than per row.
func compileRuntimeFilters(runtimeFilters map[string]string) (map[string]*vm.Program, error) {
	if len(runtimeFilters) == 0 {
		return nil, nil
	}
	out := make(map[string]*vm.Program, len(runtimeFilters))
	for attr, expr := range runtimeFilters {
		program, err := expressions.CompileFilter(expr)
		if err != nil {
			return nil, schema.NewWeaverError(schema.CodeInvalidSelection, err.Error())
		}
		out[attr] = program
	}
	return out, nil
}

// rowGetter builds the model.RowGetter the tree evaluator calls per
// attribute: a plain column lookup, except for a synthetic "__expr_N"
// attribute, which evaluates its compiled filter against the row instead.
func rowGetter(filters map[string]*vm.Program) model.RowGetter {
	return func(r any, attr string) (string, bool) {
		row := r.(dataset.Row)
		if program, ok := filters[attr]; ok {
			matched, err := expressions.EvalFilter(program, row)
			if err != nil || !matched {
				return "false", true
			}
			return "true", true
		}
		return row.AsString(attr)
	}
}

// assemble builds the final SankeyData from the resolved links: it splits
// links by endpoint kind, computes used nodes, and prunes groups and
// ordering to match (spec.md §4.6 steps 5-8).
func assemble(spec *model.WeaverSpec, links []model.Link) (*model.SankeyData, error) {
	var regular []model.Link
	fromElsewhere := map[string][]model.Link{}
	toElsewhere := map[string][]model.Link{}

	for _, l := range links {
		switch {
		case l.Source == nil && l.Target != nil:
			fromElsewhere[*l.Target] = append(fromElsewhere[*l.Target], l)
		case l.Target == nil && l.Source != nil:
			toElsewhere[*l.Source] = append(toElsewhere[*l.Source], l)
		default:
			regular = append(regular, l)
		}
	}

	used := map[string]bool{}
	for _, l := range regular {
		used[*l.Source] = true
		used[*l.Target] = true
	}
	for id := range fromElsewhere {
		used[id] = true
	}
	for id := range toElsewhere {
		used[id] = true
	}

	var nodes []model.SankeyNode
	for pair := spec.NodeMap.Oldest(); pair != nil; pair = pair.Next() {
		id, n := pair.Key, pair.Value
		if !used[id] {
			continue
		}
		nodes = append(nodes, model.SankeyNode{
			ID:                 id,
			Title:              n.Title,
			Direction:          n.Direction,
			Hidden:             n.Hidden,
			Style:              n.Style,
			FromElsewhereLinks: fromElsewhere[id],
			ToElsewhereLinks:   toElsewhere[id],
		})
	}

	groups := pruneGroups(spec, used)
	ordering := pruneOrdering(spec.Ordering, used)

	sort.SliceStable(regular, func(i, j int) bool { return regular[i].OriginalFlows[0] < regular[j].OriginalFlows[0] })

	return &model.SankeyData{
		Nodes:    nodes,
		Links:    regular,
		Groups:   groups,
		Ordering: ordering,
	}, nil
}

// pruneGroups keeps only used members of each GroupSpec, drops groups left
// empty, and drops a singleton group whose remaining member's title matches
// the group's own title (or id, if the group has no title) — a group that
// adds no information beyond its one member (spec.md §4.6 step 7).
func pruneGroups(spec *model.WeaverSpec, used map[string]bool) []model.SankeyGroup {
	var out []model.SankeyGroup
	for _, g := range spec.Groups {
		var members []string
		for _, m := range g.Members {
			if used[m] {
				members = append(members, m)
			}
		}
		if len(members) == 0 {
			continue
		}
		if len(members) == 1 {
			if n, ok := spec.Node(members[0]); ok {
				redundantTitle := g.Title
				if redundantTitle == "" {
					redundantTitle = g.ID
				}
				if n.Title == redundantTitle {
					continue
				}
			}
		}
		kind := model.NodeKindProcess
		if n, ok := spec.Node(members[0]); ok {
			kind = n.Kind
		}
		out = append(out, model.SankeyGroup{ID: g.ID, Title: g.Title, Type: kind, Members: members})
	}
	return out
}

// pruneOrdering filters every band to used nodes and drops layers whose
// every band ends up empty, preserving the remaining layer/band nesting
// (spec.md §4.6 step 8, §9 "ordering as nested lists").
func pruneOrdering(ordering model.Ordering, used map[string]bool) model.Ordering {
	var out model.Ordering
	for _, layer := range ordering {
		var bands [][]string
		anyNonEmpty := false
		for _, band := range layer {
			var ids []string
			for _, id := range band {
				if used[id] {
					ids = append(ids, id)
				}
			}
			if len(ids) > 0 {
				anyNonEmpty = true
			}
			bands = append(bands, ids)
		}
		if anyNonEmpty {
			out = append(out, bands)
		}
	}
	return out
}
