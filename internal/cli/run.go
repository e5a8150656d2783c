/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes one benchmark, or a comparison over completion counts or
  concurrency levels.

REQUIREMENTS:
  User-specified:
  - Run the benchmark with a prompt, completion count and concurrency.
  - Compare several completion counts (--compare) or concurrency levels
    (--concurrent-tests).
  - Optionally save results as JSON.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.
  - --requests bypasses completion planning and sends exactly N requests.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Runner / engine.Sweep
  - Uses: internal/config, internal/output

ERROR HANDLING:
  - Returns error if config load fails.
  - Returns error if every request failed or the run was aborted,
    after printing whatever was collected.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Plan -> Runner.Run -> Report.

USAGE:
  vllm-bench run -n 100 -c 20 --prompt "..."

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/cli/helpers.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/vllm-bench/internal/config"
	"github.com/daryltucker/vllm-bench/internal/engine"
	"github.com/daryltucker/vllm-bench/internal/model"
	"github.com/daryltucker/vllm-bench/internal/output"
)

var (
	promptText      string
	promptFile      string
	completionsFlag int
	requestsFlag    int
	compareList     []int
	concurrentList  []int
	saveFlag        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a benchmark against the inference server",
	Long: `Sends concurrent chat completion requests and reports latency and throughput.

By default the target completion count (-n) is split into requests the same
way for every run: each request asks for max(1, n/c) completions and at most
c requests are in flight. Use --requests to send exactly N single-completion
requests instead.

Every request ends as a success or as exactly one of: connection, timeout,
malformed, unclassified. Failed requests are never retried.`,
	Example: `  # Run with defaults (uses vllm_bench.yaml if present)
  vllm-bench run

  # 100 completions, 20 in flight, custom prompt
  vllm-bench run -n 100 -c 20 --prompt "Write a haiku about GPUs."

  # Compare completion counts at fixed concurrency
  vllm-bench run --compare 10,50,100,200 -c 20

  # Compare concurrency levels at fixed completions
  vllm-bench run -n 100 --concurrent-tests 5,10,20,50 --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if completionsFlag >= 0 {
			cfg.Benchmark.Completions = completionsFlag
		}

		prompt := promptText
		if promptFile != "" {
			if prompt, err = readPromptFile(promptFile); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		runner, err := newRunner(ctx, cfg)
		if err != nil {
			return err
		}
		spec := specFromConfig(cfg, prompt)
		console := output.NewConsole(os.Stdout)
		concurrency := cfg.Benchmark.MaxConcurrentRequests

		switch {
		case len(compareList) > 0:
			plans := make([]engine.Plan, 0, len(compareList))
			for _, n := range compareList {
				if n < 0 {
					return fmt.Errorf("%w: completion count %d must not be negative", engine.ErrInvalidConfig, n)
				}
				plans = append(plans, engine.CompletionPlan("", spec, n, concurrency))
			}
			return runSweep(cmd, cfg, runner, plans, output.ByCompletions, "COMPARISON SUMMARY",
				func(p engine.Plan) string { return fmt.Sprintf("benchmark_%d_completions.json", sum(p.Completions)) })

		case len(concurrentList) > 0:
			plans := make([]engine.Plan, 0, len(concurrentList))
			for _, c := range concurrentList {
				if c < 1 {
					return fmt.Errorf("%w: concurrency level %d must be at least 1", engine.ErrInvalidConfig, c)
				}
				plans = append(plans, singlePlan(spec, cfg.Benchmark.Completions, c))
			}
			return runSweep(cmd, cfg, runner, plans, output.ByConcurrency, "CONCURRENCY COMPARISON SUMMARY",
				func(p engine.Plan) string { return fmt.Sprintf("benchmark_%d_concurrent.json", p.Concurrency) })
		}

		plan := singlePlan(spec, cfg.Benchmark.Completions, concurrency)
		output.Logger.Info("Running benchmark",
			"requests", plan.Requests,
			"concurrency", plan.Concurrency,
			"prompt", truncate(spec.Prompt, 60),
		)

		res, runErrV := runner.Run(ctx, plan)
		if res == nil {
			return runErr(runErrV)
		}
		console.PrintResult(res)
		if saveFlag || cfg.Output.SaveJSON {
			saveResult(cfg, output.DefaultJSONName(time.Now()), res)
		}
		recordHistory(ctx, cfg, res)
		appendJournal(cfg, res)
		return runErr(runErrV)
	},
}

// singlePlan honours --requests when given, otherwise plans completions.
func singlePlan(spec model.RequestSpec, completions, concurrency int) engine.Plan {
	if requestsFlag >= 0 {
		return engine.Plan{Spec: spec, Requests: requestsFlag, Concurrency: concurrency}
	}
	return engine.CompletionPlan("", spec, completions, concurrency)
}

func runSweep(cmd *cobra.Command, cfg *config.Config, runner *engine.Runner, plans []engine.Plan, axis output.ComparisonAxis, title string, fileName func(engine.Plan) string) error {
	ctx := cmd.Context()
	console := output.NewConsole(os.Stdout)

	entries := engine.Sweep(ctx, runner, plans)
	results := make([]*model.Result, 0, len(entries))
	var firstErr error
	for _, e := range entries {
		if e.Err != nil {
			output.Logger.Error("Run failed", "requests", e.Plan.Requests, "concurrency", e.Plan.Concurrency, "error", e.Err)
			if firstErr == nil && !errors.Is(e.Err, engine.ErrAllFailed) {
				firstErr = e.Err
			}
		}
		if e.Result == nil {
			continue
		}
		console.PrintResult(e.Result)
		results = append(results, e.Result)
		if saveFlag || cfg.Output.SaveJSON {
			saveResult(cfg, fileName(e.Plan), e.Result)
		}
	}

	console.PrintComparison(title, axis, results)
	recordHistory(ctx, cfg, results...)
	appendJournal(cfg, results...)

	if firstErr != nil {
		return runErr(firstErr)
	}
	if len(entries) < len(plans) {
		return runErr(fmt.Errorf("%w: %d of %d runs completed", engine.ErrAborted, len(entries), len(plans)))
	}
	return nil
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&urlOverride, "url", "", "Chat completions URL (overrides config)")
	runCmd.Flags().StringVar(&modelOverride, "model", "", "Model name (overrides config)")
	runCmd.Flags().StringVar(&promptText, "prompt", "", "Prompt to send to the model")
	runCmd.Flags().StringVarP(&promptFile, "prompt-file", "p", "", "Path to a markdown/text file containing the prompt (overrides --prompt)")
	runCmd.Flags().IntVarP(&completionsFlag, "completions", "n", -1, "Number of completions to generate (overrides config)")
	runCmd.Flags().IntVar(&requestsFlag, "requests", -1, "Send exactly this many single-completion requests instead of planning completions")
	runCmd.Flags().IntVarP(&concurrentFlag, "concurrent", "c", 0, "Maximum concurrent requests (overrides config)")
	runCmd.Flags().Float64Var(&rpsOverride, "rps", 0, "Pace request starts to this many per second (0 = unpaced)")
	runCmd.Flags().IntSliceVar(&compareList, "compare", nil, "Compare multiple completion counts (e.g. 10,50,100,200)")
	runCmd.Flags().IntSliceVar(&concurrentList, "concurrent-tests", nil, "Compare different concurrency levels (e.g. 5,10,20,50)")
	runCmd.Flags().BoolVarP(&saveFlag, "save", "s", false, "Save each result to a JSON file in the output directory")
	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (JSON/CSV)")
	runCmd.Flags().StringVar(&historyDBOverride, "history-db", "", "SQLite file to record runs in (overrides config)")
	runCmd.MarkFlagsMutuallyExclusive("compare", "concurrent-tests")
}
