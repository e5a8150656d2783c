/*
PURPOSE:
  Statistics aggregator. Turns collected outcomes into latency statistics,
  throughput, success rate and per-kind error counts.

REQUIREMENTS:
  User-specified:
  - Latency statistics cover successful requests only.
  - Throughput is successes per wall-clock second.
  - Every error kind is present in the breakdown, zero or not.

  Implementation-discovered:
  - Percentiles come from an HDR histogram and are clamped to [min, max].
  - Requests never issued are pending, not failures.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: github.com/codahale/hdrhistogram

ERROR HANDLING:
  - A sample the histogram rejects falls back to exact nearest-rank
    percentiles over the sorted latencies.

IMPLEMENTATION RULES:
  - Pure functions. Standard deviation is the sample (n-1) form.

USAGE:
  summary := engine.Aggregate(outcomes, requested, wall)

SELF-HEALING INSTRUCTIONS:
  - If percentiles drift, compare against nearestRank on the same input.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update when new summary fields are added.
*/

package engine

import (
	"math"
	"sort"
	"time"

	"github.com/codahale/hdrhistogram"

	"github.com/daryltucker/vllm-bench/internal/model"
)

// Aggregate computes the summary of a run. It is pure and ignores outcome order.
// Latency statistics only consider successful outcomes; requested counts every
// request the run meant to issue, so unresolved ones show up as Pending.
func Aggregate(outcomes []model.Outcome, requested int, wall time.Duration) model.Summary {
	s := model.Summary{
		Requested:    requested,
		Received:     len(outcomes),
		ErrorsByKind: make(map[model.ErrorKind]int, len(model.ErrorKinds)),
		Latencies:    make([]time.Duration, 0, len(outcomes)),
		WallTime:     wall,
	}
	for _, k := range model.ErrorKinds {
		s.ErrorsByKind[k] = 0
	}

	metricSums := make(map[string]float64)
	metricCounts := make(map[string]int)

	for _, o := range outcomes {
		if !o.Success {
			s.FailureCount++
			kind := o.Kind
			if !kind.Valid() {
				kind = model.KindUnclassified
			}
			s.ErrorsByKind[kind]++
			continue
		}

		s.SuccessCount++
		s.Latencies = append(s.Latencies, o.Latency)
		s.Completions += o.Choices
		if o.Usage != nil {
			s.Usage.PromptTokens += o.Usage.PromptTokens
			s.Usage.CompletionTokens += o.Usage.CompletionTokens
			s.Usage.TotalTokens += o.Usage.TotalTokens
		}
		for k, v := range o.ServerMetrics {
			metricSums[k] += v
			metricCounts[k]++
		}
	}

	if pending := requested - len(outcomes); pending > 0 {
		s.Pending = pending
	}

	s.Latency = latencyStats(s.Latencies)

	if secs := wall.Seconds(); secs > 0 {
		s.Throughput = float64(s.SuccessCount) / secs
		s.CompletionThroughput = float64(s.Completions) / secs
	}
	if requested > 0 {
		s.SuccessRate = float64(s.SuccessCount) / float64(requested)
	}

	if len(metricSums) > 0 {
		s.ServerMetrics = make(map[string]float64, len(metricSums))
		for k, sum := range metricSums {
			s.ServerMetrics[k] = sum / float64(metricCounts[k])
		}
	}

	return s
}

func latencyStats(latencies []time.Duration) model.LatencyStats {
	n := len(latencies)
	if n == 0 {
		return model.LatencyStats{}
	}

	sorted := make([]time.Duration, n)
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum float64
	for _, d := range sorted {
		sum += float64(d)
	}
	mean := sum / float64(n)

	var stddev float64
	if n > 1 {
		var sq float64
		for _, d := range sorted {
			diff := float64(d) - mean
			sq += diff * diff
		}
		stddev = math.Sqrt(sq / float64(n-1))
	}

	st := model.LatencyStats{
		Count:  n,
		Mean:   time.Duration(math.Round(mean)),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Median: median(sorted),
		StdDev: time.Duration(math.Round(stddev)),
	}
	st.P90, st.P95, st.P99 = percentiles(sorted)
	return st
}

func median(sorted []time.Duration) time.Duration {
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// percentiles records microsecond latencies into an HDR histogram (3
// significant figures) and clamps the answers to the observed range.
func percentiles(sorted []time.Duration) (p90, p95, p99 time.Duration) {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	maxMicros := hi.Microseconds()
	if maxMicros < 2 {
		maxMicros = 2
	}

	h := hdrhistogram.New(1, maxMicros, 3)
	for _, d := range sorted {
		us := d.Microseconds()
		if us < 1 {
			us = 1
		}
		if err := h.RecordValue(us); err != nil {
			return nearestRank(sorted, 90), nearestRank(sorted, 95), nearestRank(sorted, 99)
		}
	}

	at := func(q float64) time.Duration {
		d := time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
		if d < lo {
			return lo
		}
		if d > hi {
			return hi
		}
		return d
	}
	return at(90), at(95), at(99)
}

// nearestRank reads quantile q (0..100) straight from the sorted samples.
func nearestRank(sorted []time.Duration, q float64) time.Duration {
	rank := int(math.Ceil(q * float64(len(sorted)) / 100))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
