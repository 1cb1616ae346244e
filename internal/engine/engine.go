// Package engine ties the pieces together: it owns one immutable
// (catalog, index) pair and turns an evaluation context into a
// BillingResult. Every request path yields a structured verdict; business
// outcomes never surface as errors.
package engine

import (
	"github.com/rs/zerolog"

	"github.com/gyeh/tarifcheck/internal/index"
	"github.com/gyeh/tarifcheck/internal/itemized"
	"github.com/gyeh/tarifcheck/internal/normalize"
	"github.com/gyeh/tarifcheck/internal/selector"
	"github.com/gyeh/tarifcheck/internal/tarif"
)

// Engine evaluates billing requests against one loaded data set. It is
// immutable after New: concurrent requests share it without locking. A data
// reload builds a fresh Engine and publishes it through Store.
type Engine struct {
	cat           *tarif.Catalog
	idx           *index.Index
	log           zerolog.Logger
	maxNearMisses int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxNearMisses caps the number of near-miss trails in results.
func WithMaxNearMisses(n int) Option {
	return func(e *Engine) { e.maxNearMisses = n }
}

// New builds the candidate index for the catalog and returns a ready
// engine. Structurally broken bundles are excluded with load warnings.
func New(cat *tarif.Catalog, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cat:           cat,
		log:           log,
		maxNearMisses: selector.DefaultMaxNearMisses,
	}
	for _, o := range opts {
		o(e)
	}
	e.idx = index.Build(cat, log)
	return e
}

// Index exposes the candidate index, mainly for inspection and tests.
func (e *Engine) Index() *index.Index { return e.idx }

// Catalog exposes the loaded reference data.
func (e *Engine) Catalog() *tarif.Catalog { return e.cat }

// Check evaluates one request: bundle selection first, itemized checking
// for everything a selected bundle does not cover, "none" when the input
// matches nothing at all.
func (e *Engine) Check(ctx *tarif.Context) *tarif.BillingResult {
	nctx := canonicalize(ctx)

	if len(nctx.Codes()) == 0 {
		return &tarif.BillingResult{
			Type:   tarif.ResultNone,
			Reason: "no service codes supplied",
		}
	}

	sel := selector.Select(e.cat, e.idx, nctx, e.maxNearMisses)

	if sel.Best != nil {
		b := e.cat.Bundles[sel.Best.Bundle]
		consumed := selector.ConsumedCodes(e.cat, e.idx, sel.Best.Bundle, nctx)
		res := &tarif.BillingResult{
			Type: tarif.ResultPauschale,
			Bundle: &tarif.SelectedBundle{
				Code:    b.Code,
				Text:    b.Text,
				Points:  b.Points,
				Verdict: *sel.Best,
			},
			NearMisses: sel.NearMisses,
			Items:      itemized.Check(e.cat, nctx, consumed),
		}
		e.log.Debug().
			Str("bundle", b.Code).
			Int("evaluated", sel.Evaluated).
			Int("near_misses", len(sel.NearMisses)).
			Msg("pauschale selected")
		return res
	}

	items := itemized.Check(e.cat, nctx, nil)
	if sel.Evaluated == 0 && !anyKnown(e.cat, nctx) {
		return &tarif.BillingResult{
			Type:   tarif.ResultNone,
			Reason: "no supplied code matched any reference table or catalog entry",
		}
	}

	reason := "no applicable bundle"
	if sel.Evaluated == 0 {
		reason = "no supplied code matched any bundle reference table"
	}
	e.log.Debug().
		Int("evaluated", sel.Evaluated).
		Bool("used_broad", sel.UsedBroad).
		Msg("falling back to itemized billing")
	return &tarif.BillingResult{
		Type:       tarif.ResultTardoc,
		NearMisses: sel.NearMisses,
		Items:      items,
		Reason:     reason,
	}
}

// canonicalize returns a copy of the context with all identifiers in their
// canonical form. The caller's context is never mutated.
func canonicalize(ctx *tarif.Context) *tarif.Context {
	out := &tarif.Context{
		Age:        ctx.Age,
		Sex:        ctx.Sex,
		Laterality: ctx.Laterality,
	}
	for _, s := range ctx.Services {
		code := normalize.Service(s.Code)
		if code == "" {
			continue
		}
		out.Services = append(out.Services, tarif.ServiceInput{Code: code, Quantity: s.Quantity})
	}
	for _, d := range ctx.Diagnoses {
		if icd := normalize.Diagnosis(d); icd != "" {
			out.Diagnoses = append(out.Diagnoses, icd)
		}
	}
	out.Medications = append(out.Medications, ctx.Medications...)
	return out
}

func anyKnown(cat *tarif.Catalog, ctx *tarif.Context) bool {
	for _, code := range ctx.Codes() {
		if _, ok := cat.Services[code]; ok {
			return true
		}
	}
	return false
}
