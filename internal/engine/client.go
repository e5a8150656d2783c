/*
PURPOSE:
  Transport layer for talking to an OpenAI-compatible inference server (vLLM).
  Sends one chat completion per call and extracts optional server metrics.

REQUIREMENTS:
  User-specified:
  - POST chat completions with a bearer token.
  - Report choices count, token usage and timing headers when present.

  Implementation-discovered:
  - Needs http.Client with a connection pool sized to the concurrency bound.
  - Truncated bodies must surface as malformed, not as connection errors.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine.Runner (through the Transport interface)
  - Uses: internal/model

ERROR HANDLING:
  - Never retries. The Runner classifies whatever error is returned.
  - Non-2xx replies return *StatusError.

IMPLEMENTATION RULES:
  - Use net/http.
  - Timeouts come from the request context, not http.Client.Timeout.

USAGE:
  t := engine.NewHTTPTransport(url, token, 20, logger)
  c, err := t.Complete(ctx, spec)

SELF-HEALING INSTRUCTIONS:
  - If the server API changes shape, update parseCompletion in response.go.

RELATED FILES:
  - internal/engine/response.go
  - internal/engine/bedrock.go

MAINTENANCE:
  - Update for new OpenAI-compatible response fields.
*/

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"

	"github.com/daryltucker/vllm-bench/internal/model"
)

// maxErrorBody caps how much of a failed reply is kept in the outcome.
const maxErrorBody = 512

// Transport performs one completion call.
type Transport interface {
	Complete(ctx context.Context, spec model.RequestSpec) (*Completion, error)
	// Target names the endpoint for reports.
	Target() string
}

// HTTPTransport calls an OpenAI-compatible /v1/chat/completions endpoint.
type HTTPTransport struct {
	URL       string
	AuthToken string
	Client    *http.Client
	Logger    *slog.Logger
}

// NewHTTPTransport creates a transport whose idle pool fits poolSize connections.
func NewHTTPTransport(endpoint, authToken string, poolSize int, logger *slog.Logger) *HTTPTransport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if poolSize > 0 {
		transport.MaxIdleConns = poolSize
		transport.MaxIdleConnsPerHost = poolSize
	}
	if logger == nil {
		logger = discardLogger()
	}

	return &HTTPTransport{
		URL:       endpoint,
		AuthToken: authToken,
		Client:    &http.Client{Transport: transport},
		Logger:    logger,
	}
}

// Target returns the endpoint URL.
func (t *HTTPTransport) Target() string {
	return t.URL
}

// Complete sends one chat completion request.
func (t *HTTPTransport) Complete(ctx context.Context, spec model.RequestSpec) (*Completion, error) {
	body, err := buildChatBody(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			t.Logger.Debug("Network: Connected", "remote", info.Conn.RemoteAddr(), "reused", info.Reused)
		},
		GotFirstResponseByte: func() {
			t.Logger.Debug("Network: First Byte Received", "model", spec.Model)
		},
	}
	ctx = httptrace.WithClientTrace(ctx, trace)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.AuthToken)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &MalformedError{Reason: "truncated body", Err: err}
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	c, err := parseCompletion(data, resp.Header)
	if err != nil {
		return nil, err
	}
	c.StatusCode = resp.StatusCode
	return c, nil
}

// ModelsURL derives the /v1/models endpoint from a chat completions URL.
func ModelsURL(completionsURL string) (string, error) {
	u, err := url.Parse(completionsURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", completionsURL, err)
	}
	path := strings.TrimSuffix(u.Path, "/")
	if i := strings.LastIndex(path, "/chat/completions"); i >= 0 {
		path = path[:i]
	} else if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	u.Path = path + "/models"
	u.RawQuery = ""
	return u.String(), nil
}

// ListModels returns the model IDs the server advertises.
func (t *HTTPTransport) ListModels(ctx context.Context) ([]string, error) {
	endpoint, err := ModelsURL(t.URL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if t.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.AuthToken)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &MalformedError{Reason: "invalid models list", Err: err}
	}

	names := make([]string, 0, len(payload.Data))
	for _, m := range payload.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
