package engine

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/vllm-bench/internal/model"
)

func TestBuildChatBody(t *testing.T) {
	body, err := buildChatBody(model.RequestSpec{
		Prompt:       "hello",
		Model:        "m",
		SystemPrompt: "be brief",
		MaxTokens:    64,
		Temperature:  0.5,
		Completions:  3,
	})
	require.NoError(t, err)

	var req chatRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, 3, req.N)
	assert.Equal(t, 64, req.MaxTokens)
	assert.Equal(t, []chatMessage{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hello"}}, req.Messages)
}

func TestBuildChatBodyDefaults(t *testing.T) {
	body, err := buildChatBody(model.RequestSpec{Prompt: "hi", Model: "m"})
	require.NoError(t, err)

	var req chatRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, 1, req.N)
	assert.Len(t, req.Messages, 1, "no system message when unset")
}

func TestParseCompletion(t *testing.T) {
	header := http.Header{}
	header.Set("X-Process-Time", "1.25")
	header.Set("X-Queue-Latency", "not-a-number")
	header.Set("Content-Type", "application/json")

	c, err := parseCompletion([]byte(`{
		"choices": [{"message": {"content": "a"}}, {"message": {"content": "b"}}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 30, "total_tokens": 42, "note": "x"}
	}`), header)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Choices)
	require.NotNil(t, c.Usage)
	assert.Equal(t, model.Usage{PromptTokens: 12, CompletionTokens: 30, TotalTokens: 42}, *c.Usage)
	assert.Equal(t, map[string]float64{
		"prompt_tokens":     12,
		"completion_tokens": 30,
		"total_tokens":      42,
		"x-process-time":    1.25,
	}, c.ServerMetrics)
}

func TestParseCompletionWithoutUsage(t *testing.T) {
	c, err := parseCompletion([]byte(`{"choices": []}`), nil)
	require.NoError(t, err)
	assert.Zero(t, c.Choices)
	assert.Nil(t, c.Usage)
	assert.Nil(t, c.ServerMetrics)
}

func TestParseCompletionMalformed(t *testing.T) {
	bodies := map[string]string{
		"not json":          `{"choices": [`,
		"null":              `null`,
		"array root":        `[1, 2]`,
		"missing choices":   `{"usage": {}}`,
		"choices not array": `{"choices": "lots"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := parseCompletion([]byte(body), nil)
			var malformed *MalformedError
			assert.ErrorAs(t, err, &malformed)
			assert.Equal(t, model.KindMalformed, Classify(err))
		})
	}
}
