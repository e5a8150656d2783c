/*
PURPOSE:
  Console report for single runs and comparisons.

REQUIREMENTS:
  User-specified:
  - Show counts, latency statistics, throughput and the error breakdown.

  Implementation-discovered:
  - Success rate is colour-coded so degraded runs stand out in a sweep.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: github.com/charmbracelet/lipgloss

ERROR HANDLING:
  - Write errors on the console are ignored.

IMPLEMENTATION RULES:
  - Rendering only. No computation beyond formatting.

USAGE:
  output.NewConsole(os.Stdout).PrintResult(res)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/output/json.go
  - internal/output/csv.go

MAINTENANCE:
  - Update when the Result gains fields worth showing.
*/

package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/daryltucker/vllm-bench/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Console renders results as text.
type Console struct {
	w io.Writer
}

// NewConsole writes to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) rule(ch string) {
	fmt.Fprintln(c.w, strings.Repeat(ch, 60))
}

func (c *Console) line(label string, format string, args ...any) {
	fmt.Fprintf(c.w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-28s", label+":")), fmt.Sprintf(format, args...))
}

// PrintResult prints one run.
func (c *Console) PrintResult(r *model.Result) {
	fmt.Fprintln(c.w)
	c.rule("=")
	fmt.Fprintln(c.w, titleStyle.Render("BENCHMARK RESULTS"))
	c.rule("=")
	if r.Label != "" {
		c.line("Scenario", "%s", r.Label)
	}
	c.line("Model", "%s", r.Model)
	c.line("Target", "%s", r.Target)
	c.line("Completions Requested", "%d", r.RequestedCompletions)
	c.line("Request Configuration", "%d requests, %d concurrent", r.Requested, r.Concurrency)
	c.line("Total Time", "%.2f seconds", r.WallTime.Seconds())
	c.line("Throughput", "%.2f requests/second (%.2f completions/second)", r.Throughput, r.CompletionThroughput)
	c.line("Success Rate", "%s", rateStyle(r.SuccessRate).Render(fmt.Sprintf("%.2f%%", r.SuccessRate*100)))
	c.line("Error Count", "%d", r.FailureCount)
	if r.Pending > 0 {
		c.line("Pending (unresolved)", "%s", warnStyle.Render(fmt.Sprintf("%d", r.Pending)))
	}
	if r.Aborted {
		fmt.Fprintln(c.w, badStyle.Render("Run aborted before all requests were issued."))
	}

	if r.Latency.Empty() {
		fmt.Fprintln(c.w, "Latency Statistics: no successful requests")
	} else {
		fmt.Fprintln(c.w, "Latency Statistics:")
		c.line("  Mean", "%.3fs", r.Latency.Mean.Seconds())
		c.line("  Min", "%.3fs", r.Latency.Min.Seconds())
		c.line("  Max", "%.3fs", r.Latency.Max.Seconds())
		c.line("  Median", "%.3fs", r.Latency.Median.Seconds())
		c.line("  Std Dev", "%.3fs", r.Latency.StdDev.Seconds())
		c.line("  P90 / P95 / P99", "%.3fs / %.3fs / %.3fs",
			r.Latency.P90.Seconds(), r.Latency.P95.Seconds(), r.Latency.P99.Seconds())
	}

	if r.FailureCount > 0 {
		fmt.Fprintln(c.w, "Errors by Kind:")
		for _, k := range model.ErrorKinds {
			if n := r.ErrorsByKind[k]; n > 0 {
				c.line("  "+string(k), "%s", badStyle.Render(fmt.Sprintf("%d", n)))
			}
		}
	}

	if r.Usage.TotalTokens > 0 {
		c.line("Tokens (prompt/completion)", "%d / %d", r.Usage.PromptTokens, r.Usage.CompletionTokens)
	}

	if len(r.ServerMetrics) > 0 {
		fmt.Fprintln(c.w, "Server Metrics:")
		keys := make([]string, 0, len(r.ServerMetrics))
		for k := range r.ServerMetrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c.line("  "+k, "%.4g", r.ServerMetrics[k])
		}
	}
	c.rule("=")
}

// ComparisonAxis picks the first column of a comparison table.
type ComparisonAxis int

const (
	ByCompletions ComparisonAxis = iota
	ByConcurrency
)

// PrintComparison prints one row per result.
func (c *Console) PrintComparison(title string, axis ComparisonAxis, results []*model.Result) {
	fmt.Fprintln(c.w)
	c.rule("=")
	fmt.Fprintln(c.w, titleStyle.Render(title))
	c.rule("=")

	first := "Completions"
	if axis == ByConcurrency {
		first = "Concurrent"
	}
	fmt.Fprintf(c.w, "%-12s %-10s %-12s %-12s %-10s\n", first, "Time (s)", "Throughput", "Latency (s)", "Success %")
	c.rule("-")
	for _, r := range results {
		if r == nil {
			continue
		}
		key := r.RequestedCompletions
		if axis == ByConcurrency {
			key = r.Concurrency
		}
		fmt.Fprintf(c.w, "%-12d %-10.2f %-12.2f %-12.3f %-10s\n",
			key, r.WallTime.Seconds(), r.Throughput, r.Latency.Mean.Seconds(),
			fmt.Sprintf("%.1f%%", r.SuccessRate*100))
	}
}

// PrintSaved notes where a report landed.
func (c *Console) PrintSaved(kind, path string) {
	fmt.Fprintf(c.w, "%s saved to: %s\n", kind, path)
}

func rateStyle(rate float64) lipgloss.Style {
	switch {
	case rate >= 0.99:
		return goodStyle
	case rate >= 0.9:
		return warnStyle
	default:
		return badStyle
	}
}

// FormatDuration renders d in seconds with millisecond precision.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
