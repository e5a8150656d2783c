/*
PURPOSE:
  Defines the root Cobra command for the vllm-bench CLI.
  Handles global flags and command initialization.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Ctrl-C must cancel the run so partial results still get reported.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/vllm-bench/main.go
  - Calls: Child commands (run, scenarios, history, list-models)
  - Modifies: output.Logger (once, before any subcommand runs).

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands, Root is usually empty or helps.

USAGE:
  Called by main.go.

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to init().

RELATED FILES:
  - cmd/vllm-bench/main.go

MAINTENANCE:
  - Update when adding global configuration options.
*/

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daryltucker/vllm-bench/internal/output"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile   string
	logFormat string
	verbose   bool

	rootCmd = &cobra.Command{
		Use:           "vllm-bench",
		Short:         "Concurrent throughput and latency benchmark for vLLM servers",
		Long:          `Issues concurrent chat completion requests against an OpenAI-compatible inference server and reports latency, throughput and error statistics. Use 'run --help' for benchmark options.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := output.NewLogger(os.Stderr, logFormat, verbose)
			if err != nil {
				return err
			}
			output.SetLogger(logger)
			return nil
		},
	}
)

// Execute executes the root command. SIGINT/SIGTERM cancel the context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./vllm_bench.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every request")
}
