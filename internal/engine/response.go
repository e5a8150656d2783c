/*
PURPOSE:
  Chat-completion request bodies and response parsing shared by every
  transport.

REQUIREMENTS:
  User-specified:
  - A success is a 2xx response with a well-formed body.

  Implementation-discovered:
  - vLLM reports usage and timing fields that are worth keeping as server
    metrics alongside selected response headers.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/client.go, internal/engine/bedrock.go
  - Uses: encoding/json

ERROR HANDLING:
  - Bodies that fail to decode or lack choices return *MalformedError.

IMPLEMENTATION RULES:
  - Parse into generic maps so unknown server fields never fail a request.

USAGE:
  body, err := buildChatBody(spec)
  c, err := parseCompletion(raw, resp.Header)

SELF-HEALING INSTRUCTIONS:
  - If a server version renames usage fields, extend the lookups here.

RELATED FILES:
  - internal/engine/errors.go

MAINTENANCE:
  - Update when the request body gains new sampling parameters.
*/

package engine

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/daryltucker/vllm-bench/internal/model"
)

// Completion is what a transport extracts from a successful reply.
type Completion struct {
	StatusCode    int
	Choices       int
	Usage         *model.Usage
	ServerMetrics map[string]float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	N           int           `json:"n"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func buildChatBody(spec model.RequestSpec) ([]byte, error) {
	var messages []chatMessage
	if spec.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: spec.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: spec.Prompt})

	n := spec.Completions
	if n < 1 {
		n = 1
	}
	return json.Marshal(chatRequest{
		Model:       spec.Model,
		Messages:    messages,
		N:           n,
		MaxTokens:   spec.MaxTokens,
		Temperature: spec.Temperature,
	})
}

// metricHeaderKeywords select response headers that carry server timing.
var metricHeaderKeywords = []string{"time", "latency", "throughput"}

// parseCompletion validates a chat completion body. Only "choices" is required;
// usage and timing headers are optional and simply absent when missing or mistyped.
func parseCompletion(body []byte, header http.Header) (*Completion, error) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, &MalformedError{Reason: "invalid JSON", Err: err}
	}
	if root == nil {
		return nil, &MalformedError{Reason: "response is not a JSON object"}
	}

	choices, ok := lookupArray(root, "choices")
	if !ok {
		return nil, &MalformedError{Reason: `missing "choices" array`}
	}

	c := &Completion{Choices: len(choices)}

	if usage, ok := lookupObject(root, "usage"); ok {
		u := &model.Usage{}
		if v, ok := lookupNumber(usage, "prompt_tokens"); ok {
			u.PromptTokens = int(v)
		}
		if v, ok := lookupNumber(usage, "completion_tokens"); ok {
			u.CompletionTokens = int(v)
		}
		if v, ok := lookupNumber(usage, "total_tokens"); ok {
			u.TotalTokens = int(v)
		}
		c.Usage = u

		for k := range usage {
			if v, ok := lookupNumber(usage, k); ok {
				c.addMetric(k, v)
			}
		}
	}

	for name, values := range header {
		lower := strings.ToLower(name)
		for _, kw := range metricHeaderKeywords {
			if !strings.Contains(lower, kw) || len(values) == 0 {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64); err == nil {
				c.addMetric(lower, v)
			}
			break
		}
	}

	return c, nil
}

func (c *Completion) addMetric(key string, v float64) {
	if c.ServerMetrics == nil {
		c.ServerMetrics = make(map[string]float64)
	}
	c.ServerMetrics[key] = v
}

func lookupObject(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

func lookupArray(m map[string]any, key string) ([]any, bool) {
	v, ok := m[key].([]any)
	return v, ok
}

func lookupNumber(m map[string]any, key string) (float64, bool) {
	v, ok := m[key].(float64)
	return v, ok
}
