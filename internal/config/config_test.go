package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendHTTP, cfg.Server.Backend)
	assert.Equal(t, "http://localhost:63455/v1/chat/completions", cfg.Server.URL)
	assert.Equal(t, 20, cfg.Benchmark.MaxConcurrentRequests)
	assert.Equal(t, 4050, cfg.Request.MaxTokens)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "bench.yaml", `
server:
  url: http://gpu-box:8000/v1/chat/completions
  model: meta-llama/Llama-3.1-8B-Instruct
  timeout: 90s
benchmark:
  max_concurrent_requests: 50
  completions: 200
  requests_per_second: 12.5
request:
  prompt: Tell me a joke.
test_scenarios:
  - name: short
    prompt: Hi
    completions: [10, 50]
output:
  dir: out
  history_db: out/history.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://gpu-box:8000/v1/chat/completions", cfg.Server.URL)
	assert.Equal(t, "meta-llama/Llama-3.1-8B-Instruct", cfg.Server.Model)
	assert.Equal(t, 90*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 50, cfg.Benchmark.MaxConcurrentRequests)
	assert.Equal(t, 200, cfg.Benchmark.Completions)
	assert.InDelta(t, 12.5, cfg.Benchmark.RequestsPerSecond, 1e-9)
	assert.Equal(t, "Tell me a joke.", cfg.Request.Prompt)
	assert.Equal(t, "You are a helpful assistant.", cfg.Request.SystemPrompt, "unset keys keep defaults")
	require.Len(t, cfg.Scenarios, 1)
	assert.Equal(t, []int{10, 50}, cfg.Scenarios[0].Completions)
	assert.Equal(t, "out/history.db", cfg.Output.HistoryDB)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "bench.toml", `
[server]
backend = "bedrock"
region = "us-west-2"
model = "qwen.qwen3-32b-v1:0"

[benchmark]
max_concurrent_requests = 8
run_timeout = "10m"

[[test_scenarios]]
name = "code"
prompt = "Write quicksort in Go."
completions = [5]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendBedrock, cfg.Server.Backend)
	assert.Equal(t, "us-west-2", cfg.Server.Region)
	assert.Equal(t, 8, cfg.Benchmark.MaxConcurrentRequests)
	assert.Equal(t, 10*time.Minute, cfg.Benchmark.RunTimeout)
	require.Len(t, cfg.Scenarios, 1)
	assert.Equal(t, "code", cfg.Scenarios[0].Name)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "server: [unclosed"))
	assert.Error(t, err)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.URL, cfg.Server.URL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VLLM_BENCH_URL", "http://env:1/v1/chat/completions")
	t.Setenv("VLLM_BENCH_MODEL", "env-model")
	t.Setenv("VLLM_BENCH_AUTH_TOKEN", "env-token")

	cfg, err := Load(writeFile(t, "c.yaml", "server:\n  model: file-model\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://env:1/v1/chat/completions", cfg.Server.URL)
	assert.Equal(t, "env-model", cfg.Server.Model)
	assert.Equal(t, "env-token", cfg.Server.AuthToken)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"unknown backend":     func(c *Config) { c.Server.Backend = "grpc" },
		"missing url":         func(c *Config) { c.Server.URL = "" },
		"bedrock no region":   func(c *Config) { c.Server.Backend = BackendBedrock },
		"missing model":       func(c *Config) { c.Server.Model = "" },
		"zero timeout":        func(c *Config) { c.Server.Timeout = 0 },
		"zero concurrency":    func(c *Config) { c.Benchmark.MaxConcurrentRequests = 0 },
		"negative n":          func(c *Config) { c.Benchmark.Completions = -1 },
		"negative rps":        func(c *Config) { c.Benchmark.RequestsPerSecond = -1 },
		"negative run limit":  func(c *Config) { c.Benchmark.RunTimeout = -time.Second },
		"zero max tokens":     func(c *Config) { c.Request.MaxTokens = 0 },
		"negative temp":       func(c *Config) { c.Request.Temperature = -0.1 },
		"scenario no name":    func(c *Config) { c.Scenarios = []Scenario{{Prompt: "p"}} },
		"scenario no prompt":  func(c *Config) { c.Scenarios = []Scenario{{Name: "n"}} },
		"scenario negative n": func(c *Config) { c.Scenarios = []Scenario{{Name: "n", Prompt: "p", Completions: []int{-5}}} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	cfg := DefaultConfig()
	cfg.Benchmark.Completions = 0
	assert.NoError(t, cfg.Validate(), "zero completions is an empty run, not an error")
}
