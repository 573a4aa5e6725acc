package router

import "github.com/rendis/weaver/internal/model"

// Row is a single flow record as produced by a dataset adapter: a flat map
// from column name to string value. Numeric measure columns are parsed
// separately by the executor; the router only ever dispatches on the
// string-valued dimension columns (source, target, flow attrs, time).
type Row map[string]string

// Get implements model.RowGetter for Row.
func Get(row any, attr string) (string, bool) {
	r, ok := row.(Row)
	if !ok {
		return "", false
	}
	v, ok := r[attr]
	return v, ok
}

// RouteRow dispatches a single row against tree, returning the edge ids it
// contributes to.
func RouteRow(tree *model.TreeNode, row Row) []int {
	return model.Route(tree, row, Get)
}

// RouteAll dispatches every row in rows against tree and accumulates the
// row indices matched to each edge id, ported from combined_router.py's
// route_flows. The returned map is keyed by edge id; callers needing a
// deterministic iteration order should sort its keys (edge ids are already
// small dense integers assigned by the partition-cross stage).
func RouteAll(tree *model.TreeNode, rows []Row) map[int][]int {
	out := map[int][]int{}
	for i, row := range rows {
		for _, edgeID := range RouteRow(tree, row) {
			out[edgeID] = append(out[edgeID], i)
		}
	}
	return out
}
