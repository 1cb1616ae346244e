package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/tarifcheck/internal/dataload"
	"github.com/gyeh/tarifcheck/internal/engine"
	"github.com/gyeh/tarifcheck/internal/exitcode"
	"github.com/gyeh/tarifcheck/internal/logging"
	"github.com/gyeh/tarifcheck/internal/tarif"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate one billing request against the tariff data",
	RunE:  runCheck,
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&cfg.RequestFile, "request", "", "Path to request JSON file (required)")
	f.BoolVar(&cfg.OutputJSON, "json", false, "Print the full result as JSON instead of a summary")
	f.IntVar(&cfg.MaxNearMisses, "near-misses", 0, "Max near-miss trails to report (0 = default)")
	_ = checkCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.Debug)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	data, err := os.ReadFile(cfg.RequestFile)
	if err != nil {
		log.Error().Err(err).Msg("failed to read request file")
		os.Exit(exitcode.UsageError)
	}
	var reqCtx tarif.Context
	if err := json.Unmarshal(data, &reqCtx); err != nil {
		log.Error().Err(err).Msg("failed to parse request file")
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
	eng := engine.New(cat, log, opts...)
	result := eng.Check(&reqCtx)

	if cfg.OutputJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	printSummary(result)
	return nil
}

func printSummary(r *tarif.BillingResult) {
	switch r.Type {
	case tarif.ResultPauschale:
		fmt.Printf("Pauschale %s (%s), %.2f points\n", r.Bundle.Code, r.Bundle.Text, r.Bundle.Points)
		for _, l := range r.Bundle.Verdict.Leaves {
			mark := "ok"
			if !l.Satisfied {
				mark = "FAIL"
			}
			fmt.Printf("  [%s] %s %s: %s\n", mark, l.Kind, l.Operand, l.Explanation)
		}
	case tarif.ResultTardoc:
		fmt.Printf("No applicable Pauschale (%s); itemized billing:\n", r.Reason)
	case tarif.ResultNone:
		fmt.Printf("No result: %s\n", r.Reason)
		return
	}

	for _, item := range r.Items {
		state := "billable"
		if !item.Billable {
			state = "NOT billable"
		}
		fmt.Printf("  %s x%d (%s)\n", item.Code, item.BillableQuantity, state)
		for _, n := range item.Notes {
			fmt.Printf("    %s: %s\n", n.Level, n.Text)
		}
	}
	for _, nm := range r.NearMisses {
		fmt.Printf("  near miss %s: %d/%d conditions satisfied\n",
			nm.Bundle, satisfiedCount(nm), len(nm.Leaves))
	}
}

func satisfiedCount(v tarif.BundleVerdict) int {
	n := 0
	for _, l := range v.Leaves {
		if l.Satisfied {
			n++
		}
	}
	return n
}
