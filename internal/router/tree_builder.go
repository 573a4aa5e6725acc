package router

import (
	"strings"

	"github.com/rendis/weaver/internal/model"
)

// AttrOrder fixes the branch-dispatch order the tree builder follows:
// source first, then target, then every other attribute observed across the
// rules (explicit flow_selection attrs and partition dimensions), sorted for
// determinism, with synthetic runtime-filter attributes ("__expr_N") placed
// last so they branch at the deepest level. Ported from spec.md §4.4's
// branch-order policy.
func AttrOrder(rs Rules[[]int]) []string {
	seen := rs.Attrs()
	delete(seen, "source")
	delete(seen, "target")
	var plain, synthetic []string
	for _, a := range sortedKeys(seen) {
		if strings.HasPrefix(a, "__expr_") {
			synthetic = append(synthetic, a)
		} else {
			plain = append(plain, a)
		}
	}
	rest := append(plain, synthetic...)

	order := make([]string, 0, len(rest)+2)
	if seen["source"] || hasAttr(rs, "source") {
		order = append(order, "source")
	}
	if hasAttr(rs, "target") {
		order = append(order, "target")
	}
	return append(order, rest...)
}

func hasAttr(rs Rules[[]int], attr string) bool {
	for _, r := range rs {
		if _, ok := r.Query[attr]; ok {
			return true
		}
	}
	return false
}

// BuildEdgeTree compiles a set of (possibly overlapping) routing rules,
// each labelling a region of attribute space with the edge ids a matching
// row belongs to, into a single decision tree. Ported from
// floweaver's compiler/tree.py build_tree: an Includes constraint on the
// dispatch attribute creates one branch per explicit value; an Excludes
// constraint is distributed into every branch it does not exclude, plus the
// default; a rule silent on the attribute applies everywhere (every branch
// and the default). Recursing attribute by attribute in AttrOrder yields a
// tree whose depth is the number of distinct attributes, independent of the
// number of edges (spec.md §2's O(rows × depth) bound).
func BuildEdgeTree(rs Rules[[]int], attrOrder []string) *model.TreeNode {
	if len(attrOrder) == 0 {
		var all []int
		for _, r := range rs {
			all = append(all, r.Label...)
		}
		return model.NewLeaf(all)
	}

	attr := attrOrder[0]
	rest := attrOrder[1:]

	allValues := rs.QueryValues(attr)
	byValue := map[string]Rules[[]int]{}
	var everywhere Rules[[]int]
	var defaultRules Rules[[]int]

	for _, r := range rs {
		c, ok := r.Query[attr]
		switch {
		case !ok:
			everywhere = append(everywhere, r)
		case !c.Exclude:
			for val := range c.Values {
				byValue[val] = append(byValue[val], r)
			}
		default:
			for val := range allValues {
				if !c.Values[val] {
					byValue[val] = append(byValue[val], r)
				}
			}
			defaultRules = append(defaultRules, r)
		}
	}

	if len(allValues) == 0 {
		return BuildEdgeTree(append(append(Rules[[]int]{}, defaultRules...), everywhere...), rest)
	}

	branches := make(map[string]*model.TreeNode, len(allValues))
	for _, val := range sortedKeys(allValues) {
		combined := append(append(Rules[[]int]{}, byValue[val]...), everywhere...)
		branches[val] = BuildEdgeTree(combined, rest)
	}
	defaultCombined := append(append(Rules[[]int]{}, defaultRules...), everywhere...)
	def := BuildEdgeTree(defaultCombined, rest)

	return model.NewBranch(attr, branches, def)
}
