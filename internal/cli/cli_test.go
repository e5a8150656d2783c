package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/vllm-bench/internal/engine"
	"github.com/daryltucker/vllm-bench/internal/history"
	"github.com/daryltucker/vllm-bench/internal/model"
)

func fakeServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"choices":[{}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "vllm_bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// execute runs the CLI once. Flag variables are package globals, so they
// are reset first to keep tests independent.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	urlOverride, modelOverride, outputOverride, historyDBOverride = "", "", "", ""
	concurrentFlag, rpsOverride = 0, 0
	requestsFlag, completionsFlag = -1, -1
	saveFlag, noCSV = false, false
	compareList, concurrentList = nil, nil
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestRunCommand(t *testing.T) {
	srv, calls := fakeServer(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	cfg := writeConfig(t, dir, fmt.Sprintf("server:\n  url: %s/v1/chat/completions\n  model: test\n", srv.URL))

	err := execute(t, "run", "--config", cfg, "--requests", "6", "-c", "3", "-o", dir, "--save", "--history-db", db)
	require.NoError(t, err)
	assert.Equal(t, int64(6), calls.Load())

	saved, err := filepath.Glob(filepath.Join(dir, "benchmark_results_*.json"))
	require.NoError(t, err)
	assert.Len(t, saved, 1)

	store, err := history.Open(db)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 6, entries[0].Success)
}

func TestScenariosCommand(t *testing.T) {
	srv, calls := fakeServer(t)
	dir := t.TempDir()
	cfg := writeConfig(t, dir, fmt.Sprintf(`server:
  url: %s/v1/chat/completions
  model: test
test_scenarios:
  - name: short answer
    prompt: Say hi.
    completions: [2, 4]
`, srv.URL))

	err := execute(t, "scenarios", "--config", cfg, "-c", "2", "-o", dir)
	require.NoError(t, err)
	// n=2 at c=2 plans two requests of n=1; n=4 plans two of n=2.
	assert.Equal(t, int64(4), calls.Load())

	for _, n := range []int{2, 4} {
		assert.FileExists(t, filepath.Join(dir, fmt.Sprintf("benchmark_short_answer_%d_completions.json", n)))
	}
	reports, err := filepath.Glob(filepath.Join(dir, "benchmark_report_*.csv"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestFileSafe(t *testing.T) {
	assert.Equal(t, "code_review-v2", fileSafe("code review-v2"))
	assert.Equal(t, "a_b", fileSafe("a/b"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
}

func TestSinglePlan(t *testing.T) {
	defer func(v int) { requestsFlag = v }(requestsFlag)
	spec := model.RequestSpec{Prompt: "p"}

	requestsFlag = -1
	p := singlePlan(spec, 100, 20)
	assert.Equal(t, 20, p.Requests)
	assert.Len(t, p.Completions, 20)

	requestsFlag = 7
	p = singlePlan(spec, 100, 20)
	assert.Equal(t, 7, p.Requests)
	assert.Nil(t, p.Completions)
}

func TestRunCommandRejectsNegativeCompare(t *testing.T) {
	srv, calls := fakeServer(t)
	dir := t.TempDir()
	cfg := writeConfig(t, dir, fmt.Sprintf("server:\n  url: %s/v1/chat/completions\n  model: test\n", srv.URL))

	err := execute(t, "run", "--config", cfg, "--compare", "10,-5", "-o", dir)
	require.ErrorIs(t, err, engine.ErrInvalidConfig)
	assert.Zero(t, calls.Load(), "nothing is sent when a compare value is invalid")
}
