package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/tarifcheck/internal/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "tarifcheck",
	Short: "Pauschale / TARDOC billing checker",
	Long:  "Evaluates proposed service codes and patient context against the Pauschale condition catalog and falls back to itemized TARDOC rules.",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DataDir, "data-dir", os.Getenv("TARIF_DATA_DIR"), "Directory with exported tariff artifacts (or set TARIF_DATA_DIR)")
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("TARIF_DB_URL"), "Postgres connection string for the tariff source (or set TARIF_DB_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
}
