// Package index precomputes the candidate lookup maps the selector uses to
// shortlist bundles: reference-table name → bundles (split into a precise
// and a broad partition) and service code → tables. Built once per data
// load and read-only afterwards.
package index

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/gyeh/tarifcheck/internal/conditions"
	"github.com/gyeh/tarifcheck/internal/normalize"
	"github.com/gyeh/tarifcheck/internal/tarif"
)

// Index holds the candidate maps plus the pre-built condition tree of every
// structurally valid bundle. Bundles whose rows fail tree assembly are
// recorded in Skipped and take no part in selection.
type Index struct {
	// Precise maps a narrow reference-table name to the bundles that test it.
	Precise map[string][]string
	// Broad maps a categorical (wide) table name to the bundles that test it.
	Broad map[string][]string
	// CodeTables maps a service code to the precise tables it appears in.
	CodeTables map[string][]string
	// Trees holds the assembled condition tree per bundle code.
	Trees map[string]*conditions.Tree
	// Skipped lists bundles excluded for structural data errors.
	Skipped []SkippedBundle
}

// SkippedBundle records one bundle excluded at build time.
type SkippedBundle struct {
	Bundle string
	Reason string
}

// Build assembles the index in one pass over all bundles' condition leaves.
// Structural errors are contained per bundle: the bundle is skipped with a
// warning and the rest of the index builds normally.
func Build(cat *tarif.Catalog, log zerolog.Logger) *Index {
	idx := &Index{
		Precise:    make(map[string][]string),
		Broad:      make(map[string][]string),
		CodeTables: make(map[string][]string),
		Trees:      make(map[string]*conditions.Tree),
	}

	for _, code := range sortedBundleCodes(cat) {
		b := cat.Bundles[code]
		tree, err := conditions.Build(b.Code, b.Conditions)
		if err != nil {
			idx.Skipped = append(idx.Skipped, SkippedBundle{Bundle: b.Code, Reason: err.Error()})
			log.Warn().Str("bundle", b.Code).Err(err).Msg("bundle excluded from index")
			continue
		}
		idx.Trees[b.Code] = tree

		for _, row := range b.Conditions {
			switch row.Kind {
			case tarif.KindServiceInTable, tarif.KindDiagnosisInTable, tarif.KindMedicationInList:
				for _, val := range row.Values {
					tbl := cat.Table(val)
					if tbl == nil {
						// unresolvable operand: evaluation-time ambiguity,
						// nothing to index
						continue
					}
					if tbl.Broad() {
						idx.Broad[tbl.Name] = appendUnique(idx.Broad[tbl.Name], b.Code)
					} else {
						idx.Precise[tbl.Name] = appendUnique(idx.Precise[tbl.Name], b.Code)
					}
				}
			}
		}
	}

	// Reverse map over every code in every precise table.
	for name := range idx.Precise {
		tbl := cat.Tables[name]
		if tbl == nil {
			continue
		}
		for code := range tbl.Entries {
			idx.CodeTables[code] = appendUnique(idx.CodeTables[code], name)
		}
	}

	log.Info().
		Int("bundles", len(idx.Trees)).
		Int("skipped", len(idx.Skipped)).
		Int("precise_tables", len(idx.Precise)).
		Int("broad_tables", len(idx.Broad)).
		Int("indexed_codes", len(idx.CodeTables)).
		Msg("candidate index built")

	return idx
}

// PreciseCandidates returns the sorted union of bundles reachable from the
// given service codes through the precise partition.
func (idx *Index) PreciseCandidates(codes []string) []string {
	set := make(map[string]bool)
	for _, code := range codes {
		for _, table := range idx.CodeTables[normalize.Service(code)] {
			for _, bundle := range idx.Precise[table] {
				set[bundle] = true
			}
		}
	}
	return sortedKeys(set)
}

// BroadCandidates returns the sorted union of bundles whose broad tables
// contain any of the given codes. Consulted only when the precise lookup
// comes up empty.
func (idx *Index) BroadCandidates(cat *tarif.Catalog, codes []string) []string {
	set := make(map[string]bool)
	for name, bundles := range idx.Broad {
		tbl := cat.Tables[name]
		if tbl == nil {
			continue
		}
		for _, code := range codes {
			if tbl.Contains(normalize.Service(code)) {
				for _, bundle := range bundles {
					set[bundle] = true
				}
				break
			}
		}
	}
	return sortedKeys(set)
}

func sortedBundleCodes(cat *tarif.Catalog) []string {
	codes := make([]string, 0, len(cat.Bundles))
	for c := range cat.Bundles {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
