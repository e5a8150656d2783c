/*
PURPOSE:
  Defines the core data structures used throughout vllm-bench.
  These models describe requests, per-request outcomes and aggregate run results.

REQUIREMENTS:
  User-specified:
  - Record latency, success, error kind and server usage per request.
  - Track model name, target URL, concurrency and request count per run.

  Implementation-discovered:
  - Need JSON tags for the JSON report and history store.
  - Error kinds must stay distinct (connection/timeout/malformed/unclassified).

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/output, internal/history
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Use time.Time and time.Duration for high precision.
  - Optional server data is a nil pointer / nil map, never a zero placeholder.

USAGE:
  spec := model.RequestSpec{Prompt: "...", Model: "Qwen/Qwen3-1.7B", Completions: 1}

SELF-HEALING INSTRUCTIONS:
  - If new metrics are needed, add field and update CSV/JSON writers.

RELATED FILES:
  - internal/output/csv.go
  - internal/output/json.go

MAINTENANCE:
  - Update when adding new metrics to capture.
*/

package model

import (
	"time"
)

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	// KindConnection: the transport could not be established or maintained.
	KindConnection ErrorKind = "connection"
	// KindTimeout: the transport opened but no complete response arrived in budget.
	KindTimeout ErrorKind = "timeout"
	// KindMalformed: a response arrived but failed structural validation.
	KindMalformed ErrorKind = "malformed"
	// KindUnclassified: any other failure.
	KindUnclassified ErrorKind = "unclassified"
)

// ErrorKinds lists every kind in report order.
var ErrorKinds = []ErrorKind{KindConnection, KindTimeout, KindMalformed, KindUnclassified}

// Valid reports whether k is one of the known kinds.
func (k ErrorKind) Valid() bool {
	switch k {
	case KindConnection, KindTimeout, KindMalformed, KindUnclassified:
		return true
	}
	return false
}

// RequestSpec describes one completion request to send. Immutable once built.
type RequestSpec struct {
	Prompt       string  `json:"prompt"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	// Completions is the OpenAI "n" parameter.
	Completions int `json:"completions"`
	// MaxConcurrent is the number of siblings allowed in flight alongside this request.
	MaxConcurrent int `json:"max_concurrent"`
}

// Usage is the token accounting reported by the server.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Outcome is the terminal result of one request.
type Outcome struct {
	Index      int           `json:"index"`
	Success    bool          `json:"success"`
	Latency    time.Duration `json:"latency"`
	Kind       ErrorKind     `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Choices    int           `json:"choices"`

	Usage         *Usage             `json:"usage,omitempty"`
	ServerMetrics map[string]float64 `json:"server_metrics,omitempty"`
}

// LatencyStats summarises the latency distribution of successful outcomes.
// Count == 0 means there was no data; every other field is then zero.
type LatencyStats struct {
	Count  int           `json:"count"`
	Mean   time.Duration `json:"mean"`
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Median time.Duration `json:"median"`
	StdDev time.Duration `json:"stddev"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
}

// Empty reports whether no successful outcome contributed.
func (s LatencyStats) Empty() bool {
	return s.Count == 0
}

// Summary is the aggregate computed over a run's outcomes.
type Summary struct {
	Requested    int               `json:"requested"`
	Received     int               `json:"received"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	Pending      int               `json:"pending"`
	ErrorsByKind map[ErrorKind]int `json:"errors_by_kind"`
	Latencies    []time.Duration   `json:"latencies"`
	Latency      LatencyStats      `json:"latency"`
	WallTime     time.Duration     `json:"wall_time"`
	Throughput   float64           `json:"throughput"` // successful requests per second
	SuccessRate  float64           `json:"success_rate"`

	Completions          int                `json:"completions"`
	CompletionThroughput float64            `json:"completion_throughput"`
	Usage                Usage              `json:"usage"`
	ServerMetrics        map[string]float64 `json:"server_metrics,omitempty"`
}

// Result is the read-only snapshot of one benchmark run.
type Result struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Model       string `json:"model"`
	Target      string `json:"target"`
	Prompt      string `json:"prompt"`
	Concurrency int    `json:"concurrency"`
	// RequestedCompletions is the sum of "n" over every planned request.
	RequestedCompletions int       `json:"requested_completions"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
	Aborted              bool      `json:"aborted"`

	Summary
	Outcomes []Outcome `json:"outcomes,omitempty"`
}
