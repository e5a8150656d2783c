/*
PURPOSE:
  Defines the 'list-models' subcommand.
  Helps debug connectivity and model discovery.

REQUIREMENTS:
  User-specified:
  - List available models.

  Implementation-discovered:
  - Useful validation step before full run.
  - The models endpoint is derived from the chat completions URL.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.HTTPTransport.ListModels()

ERROR HANDLING:
  - Returns error if URL incorrect or the server is unreachable.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  vllm-bench list-models --url http://localhost:8000/v1/chat/completions

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/client.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/vllm-bench/internal/config"
	"github.com/daryltucker/vllm-bench/internal/engine"
	"github.com/daryltucker/vllm-bench/internal/output"
)

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List models served by the target host",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Server.Backend != config.BackendHTTP {
			return fmt.Errorf("list-models needs the %q backend, got %q", config.BackendHTTP, cfg.Server.Backend)
		}

		t := engine.NewHTTPTransport(cfg.Server.URL, cfg.Server.AuthToken, 1, output.Logger)
		output.Logger.Info("Querying models", "url", cfg.Server.URL)

		models, err := t.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}
		for _, m := range models {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", m)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listModelsCmd)
	listModelsCmd.Flags().StringVar(&urlOverride, "url", "", "Chat completions URL (overrides config)")
}
