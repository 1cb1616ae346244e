// Package selector shortlists candidate bundles through the candidate
// index, evaluates each candidate's condition tree, and picks the
// best-fitting fully satisfied bundle.
package selector

import (
	"sort"

	"github.com/gyeh/tarifcheck/internal/conditions"
	"github.com/gyeh/tarifcheck/internal/index"
	"github.com/gyeh/tarifcheck/internal/tarif"
)

// DefaultMaxNearMisses caps how many failed candidate trails are returned
// for explanation.
const DefaultMaxNearMisses = 3

// Selection is the outcome of one bundle search.
type Selection struct {
	// Best is the winning fully satisfied bundle, nil when none applies.
	Best *tarif.BundleVerdict
	// NearMisses holds the trails of the closest unsatisfied candidates,
	// ranked by satisfied-leaf fraction.
	NearMisses []tarif.BundleVerdict
	// Evaluated is the number of candidate bundles whose tree was walked.
	Evaluated int
	// UsedBroad is true when the broad partition had to be consulted.
	UsedBroad bool
}

// Select runs the two-phase candidate search. The precise partition is
// consulted first; the broad (categorical) partition only when no precise
// candidate exists, since broad tables match almost any request. Among the
// fully satisfied candidates the higher point value wins, ties go to the
// lexicographically smallest bundle code.
func Select(cat *tarif.Catalog, idx *index.Index, ctx *tarif.Context, maxNearMisses int) Selection {
	if maxNearMisses <= 0 {
		maxNearMisses = DefaultMaxNearMisses
	}

	codes := ctx.Codes()
	candidates := idx.PreciseCandidates(codes)
	usedBroad := false
	if len(candidates) == 0 {
		candidates = idx.BroadCandidates(cat, codes)
		usedBroad = true
	}

	var best *tarif.BundleVerdict
	var misses []tarif.BundleVerdict

	for _, code := range candidates {
		tree := idx.Trees[code]
		if tree == nil {
			continue
		}
		v := conditions.Evaluate(tree, cat, ctx)
		if v.Satisfied {
			if best == nil || better(&v, best) {
				best = &v
			}
			continue
		}
		misses = append(misses, v)
	}

	sort.SliceStable(misses, func(i, j int) bool {
		fi, fj := misses[i].SatisfiedFraction(), misses[j].SatisfiedFraction()
		if fi != fj {
			return fi > fj
		}
		return misses[i].Bundle < misses[j].Bundle
	})
	if len(misses) > maxNearMisses {
		misses = misses[:maxNearMisses]
	}

	return Selection{
		Best:       best,
		NearMisses: misses,
		Evaluated:  len(candidates),
		UsedBroad:  usedBroad,
	}
}

// better reports whether candidate a beats current best b: higher points
// first, lexicographically smaller bundle code on a tie.
func better(a, b *tarif.BundleVerdict) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	return a.Bundle < b.Bundle
}

// ConsumedCodes returns the context service codes that are members of any
// table (or literal list) tested by the winning bundle's service leaves.
// Those codes are covered by the flat rate and excluded from itemized
// checking.
func ConsumedCodes(cat *tarif.Catalog, idx *index.Index, bundle string, ctx *tarif.Context) map[string]bool {
	consumed := make(map[string]bool)
	tree := idx.Trees[bundle]
	if tree == nil {
		return consumed
	}
	for _, node := range flatten(tree.Roots) {
		for _, leaf := range node.Leaves {
			switch leaf.Kind {
			case tarif.KindServiceInTable:
				for _, name := range leaf.Values {
					tbl := cat.Table(name)
					if tbl == nil {
						continue
					}
					for _, code := range ctx.Codes() {
						if tbl.Contains(code) {
							consumed[code] = true
						}
					}
				}
			case tarif.KindServiceInList:
				want := make(map[string]bool, len(leaf.Values))
				for _, v := range leaf.Values {
					want[v] = true
				}
				for _, code := range ctx.Codes() {
					if want[code] {
						consumed[code] = true
					}
				}
			}
		}
	}
	return consumed
}

func flatten(roots []*conditions.Node) []*conditions.Node {
	var out []*conditions.Node
	var walk func(*conditions.Node)
	walk = func(n *conditions.Node) {
		out = append(out, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return out
}
