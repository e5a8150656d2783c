/*
PURPOSE:
  Thread-safe result collector. Accumulates one outcome per issued request
  and hands out the full set once sealed.

REQUIREMENTS:
  User-specified:
  - Concurrent appends from every in-flight request.
  - Reads only after all requests have finished.

  Implementation-discovered:
  - Reading before Seal is a programming error, not a data race.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: internal/model

ERROR HANDLING:
  - Add after Seal and Outcomes before Seal return errors.

IMPLEMENTATION RULES:
  - All access goes through the mutex. Outcomes returns a copy.

USAGE:
  c := engine.NewCollector(n)
  _ = c.Add(outcome)
  c.Seal()
  outcomes, err := c.Outcomes()

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/controller.go

MAINTENANCE:
  - Keep the sealed-read contract if storage changes.
*/

package engine

import (
	"sync"

	"github.com/daryltucker/vllm-bench/internal/model"
)

// Collector accumulates outcomes from concurrent producers.
type Collector struct {
	mu       sync.Mutex
	outcomes []model.Outcome
	sealed   bool
}

// NewCollector preallocates room for capacity outcomes.
func NewCollector(capacity int) *Collector {
	if capacity < 0 {
		capacity = 0
	}
	return &Collector{outcomes: make([]model.Outcome, 0, capacity)}
}

// Add appends one outcome. Safe for concurrent use.
func (c *Collector) Add(o model.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return ErrSealed
	}
	c.outcomes = append(c.outcomes, o)
	return nil
}

// Len returns how many outcomes have arrived so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// Seal stops further appends. Call once every producer has finished.
func (c *Collector) Seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

// Outcomes returns a copy of everything collected. Only valid after Seal.
func (c *Collector) Outcomes() ([]model.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sealed {
		return nil, ErrNotSealed
	}
	out := make([]model.Outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out, nil
}
