package router

import (
	"sort"

	"github.com/rendis/weaver/internal/model"
)

// BundleMatch resolves which bundle (or pair of Elsewhere bundles) claims
// the flow rows in a region of attribute space.
type BundleMatch struct {
	// Single is set for an ordinary match: exactly one explicit bundle, or
	// exactly one Elsewhere bundle (only a from- or only a to-).
	Single  model.BundleID
	IsSingle bool

	// Pair is set when a row matches both a from-Elsewhere bundle and a
	// to-Elsewhere bundle: the flow enters and leaves the system boundary
	// within the same recorded row (ported from sankeyview's
	// ElsewhereBundlePairMatch / resolve_candidates).
	FromElsewhere model.BundleID
	ToElsewhere   model.BundleID
	IsPair        bool
}

// BuildSelectionQuery builds the Query a row must satisfy to be claimed by
// bundle, given the expanded process-id sets for its source/target
// endpoints and any attribute constraints parsed from its flow_selection.
func BuildSelectionQuery(bundle *model.Bundle, sourceIDs, targetIDs []string, filters Query) Query {
	q := Query{}
	if bundle.FromElsewhere() {
		q["source"] = Excludes(targetIDs...)
	} else {
		q["source"] = Includes(sourceIDs...)
	}
	if bundle.ToElsewhere() {
		q["target"] = Excludes(sourceIDs...)
	} else {
		q["target"] = Includes(targetIDs...)
	}
	for attr, c := range filters {
		q[attr] = c
	}
	return q
}

// BuildSelectionRules builds the full set of non-overlapping selection
// regions across every bundle, each carrying the resolved BundleMatch for
// that region (or dropped entirely if no bundle can claim it). This is the
// region-overlap resolution that implements spec.md §4.4's two-pass
// insertion policy: explicit bundles always win a region they cover, and an
// Elsewhere bundle only ever claims the residual.
func BuildSelectionRules(bundles []model.Bundle, querier func(b *model.Bundle) Query) Rules[BundleMatch] {
	raw := make(Rules[model.BundleID], len(bundles))
	for i := range bundles {
		raw[i] = Rule[model.BundleID]{Query: querier(&bundles[i]), Label: bundles[i].ID}
	}

	byID := make(map[model.BundleID]*model.Bundle, len(bundles))
	for i := range bundles {
		byID[bundles[i].ID] = &bundles[i]
	}

	refined := Refine(raw)
	matches := MapRules(refined, func(candidates []model.BundleID) matchResult {
		return resolveCandidates(candidates, byID)
	})

	out := make(Rules[BundleMatch], 0, len(matches))
	for _, r := range matches {
		if r.Label.ok {
			out = append(out, Rule[BundleMatch]{Query: r.Query, Label: r.Label.match})
		}
	}
	return out
}

// matchResult threads the "no match" case through MapRules, which cannot
// itself drop rules (the empty-region filter runs afterward, above).
type matchResult struct {
	match BundleMatch
	ok    bool
}

func resolveCandidates(candidates []model.BundleID, bundles map[model.BundleID]*model.Bundle) matchResult {
	if len(candidates) == 0 {
		return matchResult{}
	}

	var explicitRegular, explicitFrom, explicitTo []model.BundleID
	var implicitFrom, implicitTo []model.BundleID

	for _, id := range candidates {
		b := bundles[id]
		implicit := isImplicit(id)
		switch {
		case b.FromElsewhere() && implicit:
			implicitFrom = append(implicitFrom, id)
		case b.FromElsewhere():
			explicitFrom = append(explicitFrom, id)
		case b.ToElsewhere() && implicit:
			implicitTo = append(implicitTo, id)
		case b.ToElsewhere():
			explicitTo = append(explicitTo, id)
		default:
			explicitRegular = append(explicitRegular, id)
		}
	}

	// Multiple explicit bundles matching the same region is a compiler bug
	// upstream (overlapping, ambiguous bundles); resolveCandidates picks the
	// lowest declaration id deterministically rather than raising, since
	// spec.md's failure semantics reserve "fatal" for validation, not for
	// routing resolution. The compiler's validation pass does not reject
	// overlapping explicit bundles either.
	if len(explicitRegular) > 0 {
		sort.Slice(explicitRegular, func(i, j int) bool { return explicitRegular[i] < explicitRegular[j] })
		return matchResult{match: BundleMatch{Single: explicitRegular[0], IsSingle: true}, ok: true}
	}

	fromID, haveFrom := pickOne(explicitFrom, implicitFrom)
	toID, haveTo := pickOne(explicitTo, implicitTo)

	switch {
	case haveFrom && haveTo:
		return matchResult{match: BundleMatch{FromElsewhere: fromID, ToElsewhere: toID, IsPair: true}, ok: true}
	case haveFrom:
		return matchResult{match: BundleMatch{Single: fromID, IsSingle: true}, ok: true}
	case haveTo:
		return matchResult{match: BundleMatch{Single: toID, IsSingle: true}, ok: true}
	default:
		return matchResult{}
	}
}

func pickOne(explicit, implicit []model.BundleID) (model.BundleID, bool) {
	if len(explicit) > 0 {
		sort.Slice(explicit, func(i, j int) bool { return explicit[i] < explicit[j] })
		return explicit[0], true
	}
	if len(implicit) > 0 {
		sort.Slice(implicit, func(i, j int) bool { return implicit[i] < implicit[j] })
		return implicit[0], true
	}
	return 0, false
}

// isImplicit would mirror sankeyview's "bundle ids starting with __ are
// assumed implicit" convention, but model.BundleID is an int here (spec.md
// §4.1 identifies a bundle by declaration index, not by a string id), so
// there is no "__" prefix for it to test: it always reports false. The
// implicit/explicit branches in resolveCandidates are dead given that, kept
// only because Weaver's compiler never auto-generates balancing bundles in
// the first place (no auto-balancing step, unlike floweaver's) — there is
// nothing in scope that would ever produce an implicit bundle to prioritize
// below an explicit one.
func isImplicit(model.BundleID) bool { return false }
