/*
PURPOSE:
  Writes the benchmark comparison table to a CSV file.
  One row per run; ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV (scenario, completions, requests, concurrency, timings, rates).

  Implementation-discovered:
  - Error counts are split per kind so the table keeps the taxonomy.
  - Pending requests get their own column, distinct from failures.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Consumes: internal/model.Result

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Use Mutex since sweeps may report from several goroutines.

USAGE:
  w, err := output.NewCSVWriter("benchmark_report.csv")
  w.Write(result)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If CSV format changes, update CSVHeader and record conversion together.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update Write() mapping when Result struct changes.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/daryltucker/vllm-bench/internal/model"
)

// CSVHeader is the column order of the comparison table.
var CSVHeader = []string{
	"scenario", "prompt", "num_completions", "num_requests", "concurrent_requests",
	"total_time", "avg_latency", "throughput", "completion_throughput", "success_rate",
	"error_count", "pending", "connection_errors", "timeout_errors", "malformed_errors",
	"unclassified_errors", "min_latency", "max_latency", "median_latency",
	"stddev_latency", "p95_latency",
}

// CSVWriter handles writing results to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single result row to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(r *model.Result) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.writer.Write(Record(r)); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}

// Record converts a result to a row matching CSVHeader. Times are seconds.
func Record(r *model.Result) []string {
	secs := func(v float64) string { return fmt.Sprintf("%.4f", v) }
	return []string{
		r.Label,
		r.Prompt,
		strconv.Itoa(requestedCompletions(r)),
		strconv.Itoa(r.Requested),
		strconv.Itoa(r.Concurrency),
		secs(r.WallTime.Seconds()),
		secs(r.Latency.Mean.Seconds()),
		fmt.Sprintf("%.4f", r.Throughput),
		fmt.Sprintf("%.4f", r.CompletionThroughput),
		fmt.Sprintf("%.4f", r.SuccessRate),
		strconv.Itoa(r.FailureCount),
		strconv.Itoa(r.Pending),
		strconv.Itoa(r.ErrorsByKind[model.KindConnection]),
		strconv.Itoa(r.ErrorsByKind[model.KindTimeout]),
		strconv.Itoa(r.ErrorsByKind[model.KindMalformed]),
		strconv.Itoa(r.ErrorsByKind[model.KindUnclassified]),
		secs(r.Latency.Min.Seconds()),
		secs(r.Latency.Max.Seconds()),
		secs(r.Latency.Median.Seconds()),
		secs(r.Latency.StdDev.Seconds()),
		secs(r.Latency.P95.Seconds()),
	}
}

// requestedCompletions is the number of completions the run asked for.
func requestedCompletions(r *model.Result) int {
	if r.RequestedCompletions > 0 {
		return r.RequestedCompletions
	}
	return r.Requested
}
