package main

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/tarifcheck/internal/dataload"
	"github.com/gyeh/tarifcheck/internal/engine"
	"github.com/gyeh/tarifcheck/internal/exitcode"
	"github.com/gyeh/tarifcheck/internal/logging"
	"github.com/gyeh/tarifcheck/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the billing checker over HTTP",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&cfg.ListenAddr, "listen", ":8080", "HTTP listen address")
	f.IntVar(&cfg.MaxNearMisses, "near-misses", 0, "Max near-miss trails per result (0 = default)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.Debug)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	cat, err := dataload.Load(cfg.DataDir, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to load tariff data")
		os.Exit(exitcode.DataError)
	}

	var opts []engine.Option
	if cfg.MaxNearMisses > 0 {
		opts = append(opts, engine.WithMaxNearMisses(cfg.MaxNearMisses))
	}
	store := engine.NewStore(engine.New(cat, log, opts...))
	srv := server.New(store, cfg.DataDir, log)

	log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Router()); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(exitcode.ServeError)
	}
	return nil
}
