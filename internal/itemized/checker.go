// Package itemized validates individual TARDOC positions against their own
// constraints: demographic gates, cumulation exclusions and quantity
// ceilings. It runs for every code not covered by a selected flat rate.
package itemized

import (
	"fmt"
	"strings"

	"github.com/gyeh/tarifcheck/internal/normalize"
	"github.com/gyeh/tarifcheck/internal/tarif"
)

// Check validates each context service code not marked consumed and returns
// one ItemResult per code, in input order. Hard constraint violations (sex
// or age mismatch, unknown code, cumulation conflict) mark the line
// non-billable with the constraint as the reason. Quantity above the
// declared maximum is clamped with an advisory note, never blocked.
func Check(cat *tarif.Catalog, ctx *tarif.Context, consumed map[string]bool) []tarif.ItemResult {
	codes := make([]string, 0, len(ctx.Services))
	for _, c := range ctx.Codes() {
		if !consumed[c] {
			codes = append(codes, c)
		}
	}

	results := make([]tarif.ItemResult, 0, len(codes))
	for _, code := range codes {
		results = append(results, checkOne(cat, ctx, code, codes))
	}
	return results
}

func checkOne(cat *tarif.Catalog, ctx *tarif.Context, code string, billed []string) tarif.ItemResult {
	requested := ctx.QuantityOf(code)
	res := tarif.ItemResult{
		Code:              code,
		RequestedQuantity: requested,
		BillableQuantity:  requested,
		Billable:          true,
	}

	svc := cat.Services[normalize.Service(code)]
	if svc == nil {
		res.Billable = false
		res.BillableQuantity = 0
		res.Notes = append(res.Notes, tarif.ItemNote{
			Level: tarif.NoteBlocking,
			Text:  "unknown service code",
		})
		return res
	}
	res.Text = svc.Text

	if note, ok := demographicViolation(svc, ctx); ok {
		res.Billable = false
		res.BillableQuantity = 0
		res.Notes = append(res.Notes, note)
	}

	for _, note := range exclusionNotes(cat, code, billed) {
		if note.Level == tarif.NoteBlocking {
			res.Billable = false
			res.BillableQuantity = 0
		}
		res.Notes = append(res.Notes, note)
	}

	if res.Billable && svc.MaxQuantity != nil && requested > *svc.MaxQuantity {
		res.BillableQuantity = *svc.MaxQuantity
		res.Notes = append(res.Notes, tarif.ItemNote{
			Level: tarif.NoteAdvisory,
			Text:  fmt.Sprintf("quantity reduced from %d to declared maximum %d", requested, *svc.MaxQuantity),
		})
	}
	return res
}

func demographicViolation(svc *tarif.ServiceCode, ctx *tarif.Context) (tarif.ItemNote, bool) {
	if svc.Sex != "" && ctx.Sex != "" && !strings.EqualFold(ctx.Sex, svc.Sex) {
		return tarif.ItemNote{
			Level: tarif.NoteBlocking,
			Text:  fmt.Sprintf("code is restricted to sex %q, patient is %q", svc.Sex, ctx.Sex),
		}, true
	}
	if ctx.Age != nil {
		if svc.MinAge != nil && *ctx.Age < *svc.MinAge {
			return tarif.ItemNote{
				Level: tarif.NoteBlocking,
				Text:  fmt.Sprintf("patient age %d is below minimum %d", *ctx.Age, *svc.MinAge),
			}, true
		}
		if svc.MaxAge != nil && *ctx.Age > *svc.MaxAge {
			return tarif.ItemNote{
				Level: tarif.NoteBlocking,
				Text:  fmt.Sprintf("patient age %d is above maximum %d", *ctx.Age, *svc.MaxAge),
			}, true
		}
	}
	return tarif.ItemNote{}, false
}

// exclusionNotes applies the cumulation-exclusion set. The exclusion is
// symmetric even when only one side declares it. When two codes in the same
// encounter exclude each other, the lexicographically larger code is blocked
// and the smaller one keeps an advisory, so exactly one of the pair survives
// and the outcome does not depend on input order.
func exclusionNotes(cat *tarif.Catalog, code string, billed []string) []tarif.ItemNote {
	var notes []tarif.ItemNote
	for _, other := range billed {
		if other == code || !excludesEachOther(cat, code, other) {
			continue
		}
		if code > other {
			notes = append(notes, tarif.ItemNote{
				Level: tarif.NoteBlocking,
				Text:  fmt.Sprintf("not billable together with %s in the same encounter", other),
			})
		} else {
			notes = append(notes, tarif.ItemNote{
				Level: tarif.NoteAdvisory,
				Text:  fmt.Sprintf("excludes %s; that position was dropped", other),
			})
		}
	}
	return notes
}

func excludesEachOther(cat *tarif.Catalog, a, b string) bool {
	return declaresExclusion(cat.Services[normalize.Service(a)], b) ||
		declaresExclusion(cat.Services[normalize.Service(b)], a)
}

func declaresExclusion(svc *tarif.ServiceCode, code string) bool {
	if svc == nil {
		return false
	}
	for _, ex := range svc.Excludes {
		if normalize.Service(ex) == normalize.Service(code) {
			return true
		}
	}
	return false
}
