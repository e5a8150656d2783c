/*
PURPOSE:
  Defines the 'scenarios' subcommand.
  Runs every test scenario from the config file at each of its completion
  counts and writes a combined CSV report.

REQUIREMENTS:
  User-specified:
  - Benchmark several named prompts in one go.
  - Produce a CSV report with one row per run.

  Implementation-discovered:
  - A failed run must not stop the remaining scenarios.
  - Ctrl-C stops after the current run; the report keeps what finished.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Sweep
  - Uses: internal/config (test_scenarios), internal/output

ERROR HANDLING:
  - Returns error if no scenarios are configured.
  - Per-run failures are logged and reported, not fatal.

IMPLEMENTATION RULES:
  - Setup flags in init().

USAGE:
  vllm-bench scenarios --config benchmark_config.yaml

SELF-HEALING INSTRUCTIONS:
  - If the report is empty, check test_scenarios in the config file.

RELATED FILES:
  - internal/cli/run.go
  - internal/output/csv.go

MAINTENANCE:
  - Update when the CSV columns change.
*/

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/vllm-bench/internal/engine"
	"github.com/daryltucker/vllm-bench/internal/model"
	"github.com/daryltucker/vllm-bench/internal/output"
)

var noCSV bool

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Run every test scenario from the config file",
	Example: `  # Scenarios from benchmark_config.yaml, 50 requests in flight
  vllm-bench scenarios --config benchmark_config.yaml -c 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Scenarios) == 0 {
			return fmt.Errorf("%w: no test_scenarios configured", engine.ErrInvalidConfig)
		}

		ctx := cmd.Context()
		runner, err := newRunner(ctx, cfg)
		if err != nil {
			return err
		}

		var plans []engine.Plan
		for _, s := range cfg.Scenarios {
			spec := specFromConfig(cfg, s.Prompt)
			for _, n := range s.Completions {
				plans = append(plans, engine.CompletionPlan(s.Name, spec, n, cfg.Benchmark.MaxConcurrentRequests))
			}
		}
		output.Logger.Info("Running scenarios", "scenarios", len(cfg.Scenarios), "runs", len(plans))

		console := output.NewConsole(os.Stdout)
		entries := engine.Sweep(ctx, runner, plans)
		results := make([]*model.Result, 0, len(entries))
		for _, e := range entries {
			if e.Err != nil {
				output.Logger.Error("Scenario run failed", "scenario", e.Plan.Label, "error", e.Err)
			}
			if e.Result == nil {
				continue
			}
			console.PrintResult(e.Result)
			results = append(results, e.Result)
			saveResult(cfg, fmt.Sprintf("benchmark_%s_%d_completions.json", fileSafe(e.Plan.Label), e.Result.RequestedCompletions), e.Result)
		}

		if cfg.Output.CSV && !noCSV && len(results) > 0 {
			path := filepath.Join(cfg.Output.Dir, fmt.Sprintf("benchmark_report_%s.csv", time.Now().Format("20060102_150405")))
			if err := writeReport(path, results); err != nil {
				return err
			}
			console.PrintSaved("Report", path)
		}

		recordHistory(ctx, cfg, results...)
		appendJournal(cfg, results...)

		if len(entries) < len(plans) {
			return runErr(fmt.Errorf("%w: %d of %d runs completed", engine.ErrAborted, len(entries), len(plans)))
		}
		return nil
	},
}

func writeReport(path string, results []*model.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	w, err := output.NewCSVWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer w.Close()

	for _, r := range results {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	return nil
}

// fileSafe keeps scenario names usable as file name parts.
func fileSafe(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

func init() {
	rootCmd.AddCommand(scenariosCmd)

	scenariosCmd.Flags().StringVar(&urlOverride, "url", "", "Chat completions URL (overrides config)")
	scenariosCmd.Flags().StringVar(&modelOverride, "model", "", "Model name (overrides config)")
	scenariosCmd.Flags().IntVarP(&concurrentFlag, "concurrent", "c", 0, "Maximum concurrent requests (overrides config)")
	scenariosCmd.Flags().Float64Var(&rpsOverride, "rps", 0, "Pace request starts to this many per second (0 = unpaced)")
	scenariosCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (JSON/CSV)")
	scenariosCmd.Flags().StringVar(&historyDBOverride, "history-db", "", "SQLite file to record runs in (overrides config)")
	scenariosCmd.Flags().BoolVar(&noCSV, "no-csv", false, "Skip the CSV report")
}
