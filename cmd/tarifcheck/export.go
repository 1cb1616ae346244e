package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/tarifcheck/internal/db"
	"github.com/gyeh/tarifcheck/internal/exitcode"
	"github.com/gyeh/tarifcheck/internal/export"
	"github.com/gyeh/tarifcheck/internal/logging"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the tariff source into static lookup artifacts",
	Long:  "Reads the relational tariff source and writes catalog.json, bundles.json, conditions.json, tables.parquet and a manifest into the data directory.",
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.Debug)
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	if cfg.DataDir == "" {
		log.Error().Msg("--data-dir is required as the export target")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	summary, err := export.Run(ctx, pool, log, cfg.DataDir)
	if err != nil {
		if pe, ok := err.(*export.PipelineError); ok {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("export failed")
			if pe.Phase == "preflight" {
				os.Exit(exitcode.DataError)
			}
			os.Exit(exitcode.ExportError)
		}
		log.Error().Err(err).Msg("export failed")
		os.Exit(exitcode.ExportError)
	}

	fmt.Printf("Export complete: %d services, %d bundles, %d condition rows, %d table entries (%.1fs)\n",
		summary.Services, summary.Bundles, summary.ConditionRows, summary.TableEntries,
		summary.DurationTotal.Seconds())
	return nil
}
