/*
PURPOSE:
  Shared wiring for the commands: config loading, transport and runner
  construction, result saving and history recording.

REQUIREMENTS:
  User-specified:
  - None.

  Implementation-discovered:
  - Saving and history failures must not fail a finished run.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli commands
  - Uses: internal/config, internal/engine, internal/history, internal/output

ERROR HANDLING:
  - Persistence errors are logged and the command carries on.
  - runErr passes ErrAborted / ErrAllFailed through unwrapped.

IMPLEMENTATION RULES:
  - Commands never build transports directly.

USAGE:
  cfg, err := loadConfig()
  r, err := newRunner(ctx, cfg)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/cli/root.go
  - internal/cli/run.go

MAINTENANCE:
  - Update when a new transport or sink is added.
*/

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daryltucker/vllm-bench/internal/config"
	"github.com/daryltucker/vllm-bench/internal/engine"
	"github.com/daryltucker/vllm-bench/internal/history"
	"github.com/daryltucker/vllm-bench/internal/model"
	"github.com/daryltucker/vllm-bench/internal/output"
)

// Flag overrides shared by several subcommands.
var (
	urlOverride       string
	modelOverride     string
	outputOverride    string
	concurrentFlag    int
	rpsOverride       float64
	historyDBOverride string
)

// loadConfig loads the config file, applies flag overrides and validates.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if urlOverride != "" {
		cfg.Server.URL = urlOverride
	}
	if modelOverride != "" {
		cfg.Server.Model = modelOverride
	}
	if outputOverride != "" {
		cfg.Output.Dir = outputOverride
	}
	if concurrentFlag > 0 {
		cfg.Benchmark.MaxConcurrentRequests = concurrentFlag
	}
	if rpsOverride > 0 {
		cfg.Benchmark.RequestsPerSecond = rpsOverride
	}
	if historyDBOverride != "" {
		cfg.Output.HistoryDB = historyDBOverride
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newTransport(ctx context.Context, cfg *config.Config) (engine.Transport, error) {
	switch cfg.Server.Backend {
	case config.BackendBedrock:
		t, err := engine.NewBedrockTransport(ctx, engine.BedrockConfig{
			Region:          cfg.Server.Region,
			AccessKeyID:     cfg.Server.AccessKeyID,
			SecretAccessKey: cfg.Server.SecretAccessKey,
			Endpoint:        cfg.Server.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return engine.NewHTTPTransport(cfg.Server.URL, cfg.Server.AuthToken, cfg.Benchmark.MaxConcurrentRequests, output.Logger), nil
	}
}

// newRunner wires config into an engine.Runner. Nothing global reaches the engine.
func newRunner(ctx context.Context, cfg *config.Config) (*engine.Runner, error) {
	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return engine.NewRunner(transport, engine.Options{
		RequestsPerSecond: cfg.Benchmark.RequestsPerSecond,
		RequestTimeout:    cfg.Server.Timeout,
		RunTimeout:        cfg.Benchmark.RunTimeout,
		Logger:            output.Logger,
	}), nil
}

func specFromConfig(cfg *config.Config, prompt string) model.RequestSpec {
	if prompt == "" {
		prompt = cfg.Request.Prompt
	}
	return model.RequestSpec{
		Prompt:       prompt,
		Model:        cfg.Server.Model,
		SystemPrompt: cfg.Request.SystemPrompt,
		MaxTokens:    cfg.Request.MaxTokens,
		Temperature:  cfg.Request.Temperature,
		Completions:  1,
	}
}

// saveResult writes res as JSON under the output dir.
func saveResult(cfg *config.Config, name string, res *model.Result) {
	if res == nil {
		return
	}
	path := filepath.Join(cfg.Output.Dir, name)
	if err := output.SaveJSON(path, res); err != nil {
		output.Logger.Error("Failed to save JSON result", "path", path, "error", err)
		return
	}
	output.Logger.Info("Results saved", "path", path)
}

// recordHistory appends results to the history database when one is configured.
func recordHistory(ctx context.Context, cfg *config.Config, results ...*model.Result) {
	if cfg.Output.HistoryDB == "" {
		return
	}
	store, err := history.Open(cfg.Output.HistoryDB)
	if err != nil {
		output.Logger.Error("Failed to open history database", "path", cfg.Output.HistoryDB, "error", err)
		return
	}
	defer store.Close()

	for _, r := range results {
		if r == nil {
			continue
		}
		if err := store.Record(context.WithoutCancel(ctx), r); err != nil {
			output.Logger.Error("Failed to record run", "run_id", r.ID, "error", err)
		}
	}
}

// appendJournal appends results to the NDJSON journal when one is configured.
func appendJournal(cfg *config.Config, results ...*model.Result) {
	if cfg.Output.Journal == "" {
		return
	}
	if dir := filepath.Dir(cfg.Output.Journal); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			output.Logger.Error("Failed to create journal directory", "path", dir, "error", err)
			return
		}
	}
	w, err := output.NewJSONWriter(cfg.Output.Journal)
	if err != nil {
		output.Logger.Error("Failed to open journal", "path", cfg.Output.Journal, "error", err)
		return
	}
	defer w.Close()

	for _, r := range results {
		if r == nil {
			continue
		}
		if err := w.Write(r); err != nil {
			output.Logger.Error("Failed to append to journal", "run_id", r.ID, "error", err)
		}
	}
}

// runErr decides whether a finished run should fail the command.
// Partial failures are fine; a run where everything failed or that was
// aborted is reported as an error after its results were printed.
func runErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrAllFailed), errors.Is(err, engine.ErrAborted):
		return err
	default:
		return fmt.Errorf("benchmark failed: %w", err)
	}
}

func readPromptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	return string(data), nil
}
