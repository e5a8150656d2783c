/*
PURPOSE:
  Error sentinels and failure classification for issued requests.

REQUIREMENTS:
  User-specified:
  - Each failure maps to one of timeout, connection, malformed or
    unclassified.

  Implementation-discovered:
  - A deadline wins over every other cause.
  - Dial failures count as connection errors even when wrapped.
  - Non-2xx statuses are unclassified and keep their status code.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go, transports
  - Uses: internal/model

ERROR HANDLING:
  - Classify never fails; unknown errors are unclassified.

IMPLEMENTATION RULES:
  - Match with errors.Is / errors.As only. No string matching.

USAGE:
  kind := engine.Classify(err)

SELF-HEALING INSTRUCTIONS:
  - If a new transport error lands in unclassified, wrap it in one of the
    typed errors here.

RELATED FILES:
  - internal/engine/client.go
  - internal/engine/bedrock.go

MAINTENANCE:
  - Keep the classification order documented on Classify.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/daryltucker/vllm-bench/internal/model"
)

var (
	// ErrInvalidConfig is returned before any request is issued.
	ErrInvalidConfig = errors.New("invalid run configuration")
	// ErrAborted means the run stopped before every request was issued.
	ErrAborted = errors.New("run aborted")
	// ErrAllFailed means every issued request failed.
	ErrAllFailed = errors.New("all requests failed")
	// ErrSealed is returned when adding to a sealed collector.
	ErrSealed = errors.New("collector is sealed")
	// ErrNotSealed is returned when reading a collector that is still open.
	ErrNotSealed = errors.New("collector is not sealed")

	errTimeout = errors.New("request timed out")
)

// MalformedError reports a response that arrived but failed structural validation.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedError) Unwrap() error { return e.Err }

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Classify maps a request error to exactly one ErrorKind.
// Timeouts are checked first; failures while dialing count as connection errors.
func Classify(err error) model.ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errTimeout) {
		return model.KindTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return model.KindConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.KindTimeout
	}

	var malformed *MalformedError
	if errors.As(err, &malformed) {
		return model.KindMalformed
	}

	var dnsErr *net.DNSError
	switch {
	case opErr != nil,
		errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF):
		return model.KindConnection
	}

	return model.KindUnclassified
}
