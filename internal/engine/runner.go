/*
PURPOSE:
  Run controller that orchestrates one benchmark run.
  Validate -> start timer -> dispatch N requests (C in flight) -> drain ->
  stop timer -> aggregate -> return the Result.

REQUIREMENTS:
  User-specified:
  - Issue exactly N requests with at most C concurrent.
  - A partially failing run still yields a complete Result.

  Implementation-discovered:
  - Every issued request must resolve to exactly one outcome, even if the
    transport panics or the deadline fires mid-response.
  - Runs must not share mutable state so concurrency sweeps can run side by side.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: Controller, Collector, Aggregate, Transport

ERROR HANDLING:
  - Logs per-request errors but continues (resilience).
  - Returns ErrInvalidConfig before issuing anything.
  - Returns ErrAborted / ErrAllFailed together with a non-nil Result.

IMPLEMENTATION RULES:
  - No retries. No package-level state; the logger arrives via Options.

USAGE:
  r := engine.NewRunner(transport, engine.Options{Logger: logger})
  res, err := r.Run(ctx, plan)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/controller.go
  - internal/engine/stats.go

MAINTENANCE:
  - Update when the Result gains new run-level fields.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/daryltucker/vllm-bench/internal/model"
)

// Options tune a Runner. The zero value is usable.
type Options struct {
	RequestsPerSecond float64       // 0 = unpaced
	RequestTimeout    time.Duration // 0 = no per-request deadline
	RunTimeout        time.Duration // 0 = no wall-clock deadline
	Logger            *slog.Logger
}

// Plan describes one run.
type Plan struct {
	Label       string
	Spec        model.RequestSpec
	Requests    int
	Concurrency int
	// Completions optionally overrides Spec.Completions per request index.
	Completions []int
}

func (p Plan) validate() error {
	if p.Requests < 0 {
		return fmt.Errorf("%w: request count %d is negative", ErrInvalidConfig, p.Requests)
	}
	if p.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency %d must be at least 1", ErrInvalidConfig, p.Concurrency)
	}
	if p.Completions != nil && len(p.Completions) != p.Requests {
		return fmt.Errorf("%w: %d per-request completion counts for %d requests", ErrInvalidConfig, len(p.Completions), p.Requests)
	}
	return nil
}

func (p Plan) specFor(i int) model.RequestSpec {
	spec := p.Spec
	if p.Completions != nil {
		spec.Completions = p.Completions[i]
	}
	spec.MaxConcurrent = EffectiveConcurrency(p.Requests, p.Concurrency)
	return spec
}

// Runner executes plans against one transport.
type Runner struct {
	transport Transport
	opts      Options
	logger    *slog.Logger
}

// NewRunner creates a new Runner.
func NewRunner(transport Transport, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}
	return &Runner{transport: transport, opts: opts, logger: logger}
}

// Run executes the plan and returns its Result.
func (r *Runner) Run(ctx context.Context, plan Plan) (*model.Result, error) {
	if r.transport == nil {
		return nil, fmt.Errorf("%w: no transport", ErrInvalidConfig)
	}
	if err := plan.validate(); err != nil {
		return nil, err
	}

	concurrency := EffectiveConcurrency(plan.Requests, plan.Concurrency)
	res := &model.Result{
		ID:          uuid.NewString(),
		Label:       plan.Label,
		Model:       plan.Spec.Model,
		Target:      r.transport.Target(),
		Prompt:      plan.Spec.Prompt,
		Concurrency: concurrency,
	}
	for i := 0; i < plan.Requests; i++ {
		n := plan.specFor(i).Completions
		if n < 1 {
			n = 1
		}
		res.RequestedCompletions += n
	}

	runCtx := ctx
	if r.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.opts.RunTimeout)
		defer cancel()
	}

	r.logger.Info("Starting benchmark",
		"run_id", res.ID,
		"model", res.Model,
		"target", res.Target,
		"requests", plan.Requests,
		"concurrency", concurrency,
	)

	collector := NewCollector(plan.Requests)
	ctl := NewController(r.opts.RequestsPerSecond)

	res.StartedAt = time.Now()
	issued, dispatchErr := ctl.Dispatch(runCtx, plan.Requests, plan.Concurrency,
		func(ctx context.Context, i int) model.Outcome {
			return r.issue(ctx, plan.specFor(i), i)
		},
		func(o model.Outcome) {
			if err := collector.Add(o); err != nil {
				r.logger.Error("Dropped outcome", "index", o.Index, "error", err)
			}
		},
	)
	res.FinishedAt = time.Now()

	collector.Seal()
	outcomes, err := collector.Outcomes()
	if err != nil {
		return nil, err
	}

	res.Summary = Aggregate(outcomes, plan.Requests, res.FinishedAt.Sub(res.StartedAt))
	res.Outcomes = outcomes

	r.logger.Info("Benchmark finished",
		"run_id", res.ID,
		"success", res.SuccessCount,
		"failed", res.FailureCount,
		"pending", res.Pending,
		"wall_time", res.WallTime,
		"throughput", fmt.Sprintf("%.2f/s", res.Throughput),
	)

	if dispatchErr != nil {
		if errors.Is(dispatchErr, ErrInvalidConfig) {
			return nil, dispatchErr
		}
		res.Aborted = true
		return res, fmt.Errorf("%w: issued %d of %d requests: %w", ErrAborted, issued, plan.Requests, dispatchErr)
	}
	if plan.Requests > 0 && res.SuccessCount == 0 {
		return res, ErrAllFailed
	}
	return res, nil
}

// issue performs one request and turns whatever happens into an Outcome.
func (r *Runner) issue(ctx context.Context, spec model.RequestSpec, i int) (o model.Outcome) {
	reqCtx := ctx
	if r.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, r.opts.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			o = model.Outcome{
				Index:   i,
				Latency: time.Since(start),
				Kind:    model.KindUnclassified,
				Error:   fmt.Sprintf("panic: %v", p),
			}
			r.logger.Error("Request panicked", "index", i, "panic", p)
		}
	}()

	c, err := r.transport.Complete(reqCtx, spec)
	o = model.Outcome{Index: i, Latency: time.Since(start)}

	if err == nil && c == nil {
		err = &MalformedError{Reason: "empty completion"}
	}
	if err != nil {
		o.Kind = Classify(err)
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			o.Kind = model.KindTimeout
		}
		o.Error = err.Error()
		var se *StatusError
		if errors.As(err, &se) {
			o.StatusCode = se.Code
		}
		r.logger.Warn("Request failed", "index", i, "kind", o.Kind, "error", err)
		return o
	}

	o.Success = true
	o.StatusCode = c.StatusCode
	o.Choices = c.Choices
	o.Usage = c.Usage
	o.ServerMetrics = c.ServerMetrics
	r.logger.Debug("Request succeeded", "index", i, "latency", o.Latency, "choices", o.Choices)
	return o
}
