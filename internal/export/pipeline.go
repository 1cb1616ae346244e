// Package export reads the relational tariff source and writes the static
// artifact directory the engine loads at startup: catalog.json,
// bundles.json, conditions.json, tables.parquet and a manifest with
// per-artifact digests.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Summary captures metrics from a single export run.
type Summary struct {
	ExportID         string
	OutDir           string
	Services         int
	Bundles          int
	ConditionRows    int
	TableEntries     int
	DurationExtract  time.Duration
	DurationWrite    time.Duration
	DurationTotal    time.Duration
}

// Run executes the full export pipeline: preflight → extract → write →
// manifest.
func Run(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, outDir string) (*Summary, error) {
	totalStart := time.Now()
	exportID := uuid.New()

	log.Info().Str("export_id", exportID.String()).Str("out", outDir).Msg("starting preflight")
	if err := preflight(ctx, pool); err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}

	extractStart := time.Now()
	log.Info().Msg("starting extract")
	data, err := extract(ctx, pool, log)
	if err != nil {
		return nil, &PipelineError{Phase: "extract", Err: err}
	}
	extractDur := time.Since(extractStart)

	writeStart := time.Now()
	log.Info().Msg("writing artifacts")
	if err := writeArtifacts(outDir, data, exportID, log); err != nil {
		return nil, &PipelineError{Phase: "write", Err: err}
	}
	writeDur := time.Since(writeStart)

	summary := &Summary{
		ExportID:        exportID.String(),
		OutDir:          outDir,
		Services:        len(data.Services),
		Bundles:         len(data.Bundles),
		ConditionRows:   len(data.Conditions),
		TableEntries:    len(data.Tables),
		DurationExtract: extractDur,
		DurationWrite:   writeDur,
		DurationTotal:   time.Since(totalStart),
	}

	log.Info().
		Int("services", summary.Services).
		Int("bundles", summary.Bundles).
		Int("condition_rows", summary.ConditionRows).
		Int("table_entries", summary.TableEntries).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("export pipeline complete")

	return summary, nil
}

// preflight verifies the source schema is reachable before extracting.
func preflight(ctx context.Context, pool *pgxpool.Pool) error {
	var n int
	err := pool.QueryRow(ctx,
		"SELECT count(*) FROM information_schema.tables WHERE table_schema = 'tarif'",
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect source schema: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("schema 'tarif' has no tables; run migrate first")
	}
	return nil
}
