/*
PURPOSE:
  Run plans. Spreads a completion total across requests and runs a list of
  plans back to back as a sweep.

REQUIREMENTS:
  User-specified:
  - A completion total is split into per-request counts that sum to it.

  Implementation-discovered:
  - A negative total must be rejected, not treated as an empty run.
  - A sweep starts no further plans once the context ends.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: Runner

ERROR HANDLING:
  - Per-plan errors are kept on the SweepEntry; the sweep continues.

IMPLEMENTATION RULES:
  - Plans are values. No shared state between sweep entries.

USAGE:
  p := engine.CompletionPlan("label", spec, 100, 20)
  entries := engine.Sweep(ctx, runner, plans)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/runner.go
  - internal/cli/run.go

MAINTENANCE:
  - Update when new plan shapes are introduced.
*/

package engine

import (
	"context"

	"github.com/daryltucker/vllm-bench/internal/model"
)

// PlanCompletions splits total completions into per-request "n" values for
// the given concurrency: each request asks for max(1, total/c) completions
// and the last one takes the remainder.
func PlanCompletions(total, concurrency int) []int {
	if total <= 0 {
		return nil
	}
	c := EffectiveConcurrency(total, concurrency)
	if c < 1 {
		c = 1
	}
	per := total / c
	if per < 1 {
		per = 1
	}

	count := (total + per - 1) / per
	out := make([]int, count)
	for i := range out {
		n := total - i*per
		if n > per {
			n = per
		}
		out[i] = n
	}
	return out
}

// CompletionPlan builds a Plan that requests total completions at the given
// concurrency, using PlanCompletions to size each request.
// A negative total yields a plan that Run rejects with ErrInvalidConfig.
func CompletionPlan(label string, spec model.RequestSpec, total, concurrency int) Plan {
	if total < 0 {
		return Plan{Label: label, Spec: spec, Requests: total, Concurrency: concurrency}
	}
	per := PlanCompletions(total, concurrency)
	return Plan{
		Label:       label,
		Spec:        spec,
		Requests:    len(per),
		Concurrency: concurrency,
		Completions: per,
	}
}

// SweepEntry pairs a plan with what running it produced.
type SweepEntry struct {
	Plan   Plan
	Result *model.Result
	Err    error
}

// Sweep runs plans one after another. Each run gets its own Result; a failed
// plan is recorded and the sweep moves on. It stops early only when ctx ends.
func Sweep(ctx context.Context, r *Runner, plans []Plan) []SweepEntry {
	entries := make([]SweepEntry, 0, len(plans))
	for _, p := range plans {
		if ctx.Err() != nil {
			break
		}
		res, err := r.Run(ctx, p)
		entries = append(entries, SweepEntry{Plan: p, Result: res, Err: err})
	}
	return entries
}
