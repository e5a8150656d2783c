package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daryltucker/vllm-bench/internal/model"
)

type fakeNetErr struct{ timeout bool }

func (e fakeNetErr) Error() string   { return "fake net error" }
func (e fakeNetErr) Timeout() bool   { return e.timeout }
func (e fakeNetErr) Temporary() bool { return false }

func TestClassify(t *testing.T) {
	dialRefused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	dialTimeout := &net.OpError{Op: "dial", Net: "tcp", Err: fakeNetErr{timeout: true}}
	readReset := &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}

	tests := []struct {
		name string
		err  error
		want model.ErrorKind
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, model.KindTimeout},
		{"wrapped deadline", fmt.Errorf("Post: %w", context.DeadlineExceeded), model.KindTimeout},
		{"internal timeout", errTimeout, model.KindTimeout},
		{"net timeout", fakeNetErr{timeout: true}, model.KindTimeout},
		{"dial refused", dialRefused, model.KindConnection},
		{"dial timeout counts as connection", dialTimeout, model.KindConnection},
		{"read reset", readReset, model.KindConnection},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, model.KindConnection},
		{"bare refused", syscall.ECONNREFUSED, model.KindConnection},
		{"eof", fmt.Errorf("read: %w", io.EOF), model.KindConnection},
		{"malformed", &MalformedError{Reason: "invalid JSON"}, model.KindMalformed},
		{"malformed truncated", &MalformedError{Reason: "truncated body", Err: io.ErrUnexpectedEOF}, model.KindMalformed},
		{"malformed after deadline", fmt.Errorf("%w: %w", &MalformedError{Reason: "x"}, context.DeadlineExceeded), model.KindTimeout},
		{"status", &StatusError{Code: 503, Body: "overloaded"}, model.KindUnclassified},
		{"canceled", context.Canceled, model.KindUnclassified},
		{"other", errors.New("boom"), model.KindUnclassified},
		{"non-timeout net error", fakeNetErr{}, model.KindUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStatusErrorMessage(t *testing.T) {
	assert.Equal(t, "HTTP 500", (&StatusError{Code: 500}).Error())
	assert.Equal(t, "HTTP 429: slow down", (&StatusError{Code: 429, Body: "slow down"}).Error())
}

func TestMalformedErrorUnwraps(t *testing.T) {
	err := &MalformedError{Reason: "truncated body", Err: io.ErrUnexpectedEOF}
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "truncated body")
}
