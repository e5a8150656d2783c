package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/vllm-bench/internal/model"
)

func TestPlanCompletions(t *testing.T) {
	tests := []struct {
		total, concurrency int
		want               []int
	}{
		{0, 5, nil},
		{1, 20, []int{1}},
		{10, 20, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}},
		{100, 20, []int{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5}},
		{10, 3, []int{3, 3, 3, 1}},
		{7, 1, []int{7}},
	}
	for _, tt := range tests {
		got := PlanCompletions(tt.total, tt.concurrency)
		assert.Equal(t, tt.want, got, "total=%d c=%d", tt.total, tt.concurrency)

		sum := 0
		for _, n := range got {
			sum += n
		}
		assert.Equal(t, tt.total, sum)
	}
}

func TestCompletionPlan(t *testing.T) {
	spec := model.RequestSpec{Prompt: "p", Model: "m"}
	p := CompletionPlan("label", spec, 50, 20)

	assert.Equal(t, "label", p.Label)
	assert.Equal(t, 20, p.Concurrency)
	assert.Equal(t, len(p.Completions), p.Requests)
	require.NoError(t, p.validate())

	empty := CompletionPlan("", spec, 0, 20)
	assert.Zero(t, empty.Requests)
	require.NoError(t, empty.validate())
}

func TestSweepRunsEachPlan(t *testing.T) {
	ft := &fakeTransport{delay: time.Millisecond}
	r := NewRunner(ft, Options{})
	spec := model.RequestSpec{Prompt: "p", Model: "m"}

	plans := []Plan{
		CompletionPlan("", spec, 4, 2),
		{Spec: spec, Requests: 3, Concurrency: 0},
		CompletionPlan("", spec, 6, 3),
	}
	entries := Sweep(context.Background(), r, plans)
	require.Len(t, entries, 3)

	assert.NoError(t, entries[0].Err)
	assert.Equal(t, 4, entries[0].Result.RequestedCompletions)
	assert.ErrorIs(t, entries[1].Err, ErrInvalidConfig)
	assert.Nil(t, entries[1].Result)
	assert.NoError(t, entries[2].Err)
	assert.NotEqual(t, entries[0].Result.ID, entries[2].Result.ID)
}

func TestSweepStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := Sweep(ctx, NewRunner(&fakeTransport{}, Options{}), []Plan{simplePlan(1, 1), simplePlan(1, 1)})
	assert.Empty(t, entries)
}

func TestCompletionPlanRejectsNegativeTotal(t *testing.T) {
	ft := &fakeTransport{}
	p := CompletionPlan("", model.RequestSpec{Prompt: "p", Model: "m"}, -5, 4)

	res, err := NewRunner(ft, Options{}).Run(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, res)
	assert.Zero(t, ft.calls.Load())
}
