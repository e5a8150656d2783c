/*
PURPOSE:
  Defines the configuration structure and loading logic for vllm-bench.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Allow configuration of target server, auth token, timeouts and prompts.
  - Allow defining named test scenarios (prompt + completion counts).

  Implementation-discovered:
  - Needs to support YAML and TOML parsing (chosen by file extension).
  - Needs to support Environment variables overrides (VLLM_BENCH_...).

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli
  - Dependencies: gopkg.in/yaml.v3, github.com/BurntSushi/toml

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing default config files fall back to defaults silently.

IMPLEMENTATION RULES:
  - Config struct tags support yaml and toml.
  - Defaults should be sensible (e.g., 3600s timeout for long generations).
  - The engine never reads Config directly; cli translates it into engine.Options.

USAGE:
  cfg, err := config.Load("vllm_bench.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct, DefaultConfig() and Validate().

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Backends understood by the engine.
const (
	BackendHTTP    = "http"
	BackendBedrock = "bedrock"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the full configuration for vllm-bench.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Benchmark BenchmarkConfig `yaml:"benchmark" toml:"benchmark"`
	Request   RequestConfig   `yaml:"request" toml:"request"`
	Scenarios []Scenario      `yaml:"test_scenarios" toml:"test_scenarios"`
	Output    OutputConfig    `yaml:"output" toml:"output"`
}

// ServerConfig describes the inference endpoint.
type ServerConfig struct {
	Backend   string        `yaml:"backend" toml:"backend"`
	URL       string        `yaml:"url" toml:"url"`
	Model     string        `yaml:"model" toml:"model"`
	AuthToken string        `yaml:"auth_token" toml:"auth_token"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"`

	// Bedrock only. Empty keys use the default AWS credential chain.
	Region          string `yaml:"region" toml:"region"`
	Endpoint        string `yaml:"endpoint" toml:"endpoint"` // empty = regional default
	AccessKeyID     string `yaml:"access_key_id" toml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" toml:"secret_access_key"`
}

// BenchmarkConfig holds load-generation parameters.
type BenchmarkConfig struct {
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests" toml:"max_concurrent_requests"`
	Completions           int           `yaml:"completions" toml:"completions"`
	RequestsPerSecond     float64       `yaml:"requests_per_second" toml:"requests_per_second"` // 0 = unpaced
	RunTimeout            time.Duration `yaml:"run_timeout" toml:"run_timeout"`                 // 0 = none
}

// RequestConfig holds the chat completion parameters.
type RequestConfig struct {
	Prompt       string  `yaml:"prompt" toml:"prompt"`
	SystemPrompt string  `yaml:"system_prompt" toml:"system_prompt"`
	MaxTokens    int     `yaml:"max_tokens" toml:"max_tokens"`
	Temperature  float64 `yaml:"temperature" toml:"temperature"`
}

// Scenario is a named prompt benchmarked at several completion counts.
type Scenario struct {
	Name        string `yaml:"name" toml:"name"`
	Prompt      string `yaml:"prompt" toml:"prompt"`
	Completions []int  `yaml:"completions" toml:"completions"`
}

// OutputConfig controls where reports land.
type OutputConfig struct {
	Dir       string `yaml:"dir" toml:"dir"`
	SaveJSON  bool   `yaml:"save_json" toml:"save_json"`
	CSV       bool   `yaml:"csv" toml:"csv"`
	HistoryDB string `yaml:"history_db" toml:"history_db"` // empty = disabled
	Journal   string `yaml:"journal" toml:"journal"`       // NDJSON log of every run, empty = disabled
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Backend:   BackendHTTP,
			URL:       "http://localhost:63455/v1/chat/completions",
			Model:     "Qwen/Qwen3-1.7B",
			AuthToken: "token-abc123",
			Timeout:   3600 * time.Second,
		},
		Benchmark: BenchmarkConfig{
			MaxConcurrentRequests: 20,
			Completions:           100,
		},
		Request: RequestConfig{
			Prompt:       "Generate a creative story about a robot learning to paint.",
			SystemPrompt: "You are a helpful assistant.",
			MaxTokens:    4050,
			Temperature:  0.7,
		},
		Output: OutputConfig{
			Dir: "res",
			CSV: true,
		},
	}
}

// DefaultFiles are searched in order when no path is given.
var DefaultFiles = []string{"vllm_bench.yaml", "vllm_bench.yml", "vllm_bench.toml", "benchmark_config.yaml"}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		found := false
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnv()
			return cfg, nil
		}
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyEnv()

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VLLM_BENCH_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("VLLM_BENCH_MODEL"); v != "" {
		c.Server.Model = v
	}
	if v := os.Getenv("VLLM_BENCH_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Server.Backend {
	case BackendHTTP:
		if c.Server.URL == "" {
			return fmt.Errorf("%w: server.url is required", ErrInvalid)
		}
	case BackendBedrock:
		if c.Server.Region == "" {
			return fmt.Errorf("%w: server.region is required for the bedrock backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown server.backend %q", ErrInvalid, c.Server.Backend)
	}
	if c.Server.Model == "" {
		return fmt.Errorf("%w: server.model is required", ErrInvalid)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("%w: server.timeout must be positive", ErrInvalid)
	}
	if c.Benchmark.MaxConcurrentRequests < 1 {
		return fmt.Errorf("%w: benchmark.max_concurrent_requests must be at least 1", ErrInvalid)
	}
	if c.Benchmark.Completions < 0 {
		return fmt.Errorf("%w: benchmark.completions must not be negative", ErrInvalid)
	}
	if c.Benchmark.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: benchmark.requests_per_second must not be negative", ErrInvalid)
	}
	if c.Benchmark.RunTimeout < 0 {
		return fmt.Errorf("%w: benchmark.run_timeout must not be negative", ErrInvalid)
	}
	if c.Request.MaxTokens <= 0 {
		return fmt.Errorf("%w: request.max_tokens must be positive", ErrInvalid)
	}
	if c.Request.Temperature < 0 {
		return fmt.Errorf("%w: request.temperature must not be negative", ErrInvalid)
	}
	for i, s := range c.Scenarios {
		if s.Name == "" {
			return fmt.Errorf("%w: test_scenarios[%d].name is required", ErrInvalid, i)
		}
		if s.Prompt == "" {
			return fmt.Errorf("%w: test_scenarios[%d].prompt is required", ErrInvalid, i)
		}
		for _, n := range s.Completions {
			if n < 0 {
				return fmt.Errorf("%w: test_scenarios[%d] has a negative completion count", ErrInvalid, i)
			}
		}
	}
	return nil
}
