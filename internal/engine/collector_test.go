package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/vllm-bench/internal/model"
)

func TestCollectorConcurrentAdds(t *testing.T) {
	c := NewCollector(0)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, c.Add(model.Outcome{Index: g*50 + i}))
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 400, c.Len())
	c.Seal()

	out, err := c.Outcomes()
	require.NoError(t, err)
	assert.Len(t, out, 400)
}

func TestCollectorSealing(t *testing.T) {
	c := NewCollector(2)
	require.NoError(t, c.Add(model.Outcome{Index: 0, Success: true}))

	_, err := c.Outcomes()
	assert.ErrorIs(t, err, ErrNotSealed)

	c.Seal()
	assert.ErrorIs(t, c.Add(model.Outcome{Index: 1}), ErrSealed)

	out, err := c.Outcomes()
	require.NoError(t, err)
	require.Len(t, out, 1)

	out[0].Index = 99
	again, err := c.Outcomes()
	require.NoError(t, err)
	assert.Equal(t, 0, again[0].Index, "Outcomes returns a copy")
}
