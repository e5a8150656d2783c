/*
PURPOSE:
  Concurrency controller. Issues exactly N requests with at most C in flight,
  optionally paced by a token-bucket rate limit.

REQUIREMENTS:
  User-specified:
  - Exactly N requests, never more than C concurrent.
  - C is clamped to N; N = 0 issues nothing.

  Implementation-discovered:
  - A request that was issued must report its outcome even after cancel.
  - Pacing past the run deadline must surface as context.DeadlineExceeded,
    not as the limiter's own error text.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: golang.org/x/sync/semaphore, golang.org/x/time/rate

ERROR HANDLING:
  - Returns ErrInvalidConfig for N < 0 or C < 1.
  - Stops issuing on context end and returns the context error with the
    count of requests actually issued.

IMPLEMENTATION RULES:
  - No package-level state. The sink is called once per issued index.

USAGE:
  issued, err := engine.NewController(rps).Dispatch(ctx, n, c, issue, sink)

SELF-HEALING INSTRUCTIONS:
  - If peak concurrency exceeds C, check that the semaphore is released only
    after the sink returns.

RELATED FILES:
  - internal/engine/runner.go
  - internal/engine/collector.go

MAINTENANCE:
  - Update when new pacing modes are added.
*/

package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/daryltucker/vllm-bench/internal/model"
)

// IssueFunc performs request i and always returns its outcome.
type IssueFunc func(ctx context.Context, i int) model.Outcome

// Controller issues a fixed number of requests under a concurrency bound.
type Controller struct {
	limiter *rate.Limiter
}

// NewController returns a controller. requestsPerSecond <= 0 disables pacing.
func NewController(requestsPerSecond float64) *Controller {
	c := &Controller{}
	if requestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return c
}

// EffectiveConcurrency clamps c to n.
func EffectiveConcurrency(n, c int) int {
	if c > n {
		return n
	}
	return c
}

// pacingErr reports a limiter refusal as the deadline it ran into. The
// limiter fails early when the next slot lies past ctx's deadline.
func pacingErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// Dispatch issues n requests with at most c in flight and hands every
// outcome to sink before the request's slot is released. A failed request
// never stops the batch. If ctx ends early, no further requests are issued,
// in-flight ones are awaited, and the ctx error is returned with the number
// actually issued. With pacing, a next slot past the deadline stops the
// batch the same way and the error matches context.DeadlineExceeded.
func (ctl *Controller) Dispatch(ctx context.Context, n, c int, issue IssueFunc, sink func(model.Outcome)) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: request count %d is negative", ErrInvalidConfig, n)
	}
	if c < 1 {
		return 0, fmt.Errorf("%w: concurrency %d must be at least 1", ErrInvalidConfig, c)
	}
	if n == 0 {
		return 0, nil
	}
	c = EffectiveConcurrency(n, c)

	sem := semaphore.NewWeighted(int64(c))
	var wg sync.WaitGroup
	issued := 0
	var stopErr error

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		if ctl.limiter != nil {
			if err := ctl.limiter.Wait(ctx); err != nil {
				stopErr = pacingErr(ctx, err)
				break
			}
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			stopErr = err
			break
		}

		issued++
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			sink(issue(ctx, i))
		}(i)
	}

	wg.Wait()
	return issued, stopErr
}
