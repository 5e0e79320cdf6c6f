package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"
	"time"
)

// customError implements temporary interface for testing
type customError struct {
	message   string
	temporary bool
}

func (e customError) Error() string   { return e.message }
func (e customError) Temporary() bool { return e.temporary }

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", p.MaxAttempts)
	}
	if p.Backoff != 30*time.Second {
		t.Errorf("expected Backoff=30s, got %v", p.Backoff)
	}
	if p.Window != 10*time.Minute {
		t.Errorf("expected Window=10m, got %v", p.Window)
	}
	if err := p.Normalize(); err != nil {
		t.Errorf("default policy should normalize cleanly: %v", err)
	}
}

func TestPolicyNormalize(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		wantError bool
	}{
		{"zero attempts", Policy{MaxAttempts: 0, Backoff: time.Second}, true},
		{"zero backoff", Policy{MaxAttempts: 3, Backoff: 0}, true},
		{"window shorter than backoff", Policy{MaxAttempts: 3, Backoff: time.Minute, Window: time.Second}, true},
		{"window defaulted", Policy{MaxAttempts: 3, Backoff: time.Second}, false},
		{"valid", Policy{MaxAttempts: 3, Backoff: time.Second, Window: time.Minute}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Normalize()
			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestExhausted(t *testing.T) {
	p := Policy{MaxAttempts: 3, Backoff: time.Second}

	for count, want := range map[int]bool{0: false, 1: false, 2: false, 3: true, 4: true} {
		if got := p.Exhausted(count); got != want {
			t.Errorf("Exhausted(%d) = %v, want %v", count, got, want)
		}
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}

	base := errors.New("chat not found")
	perm := Permanent(base)

	if !IsPermanent(perm) {
		t.Error("IsPermanent should detect marked error")
	}
	if !errors.Is(perm, base) {
		t.Error("permanent error should unwrap to original")
	}
	if IsPermanent(base) {
		t.Error("unmarked error should not be permanent")
	}

	wrapped := errors.Join(errors.New("outer"), perm)
	if !IsPermanent(wrapped) {
		t.Error("IsPermanent should traverse the error chain")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"permanent", Permanent(errors.New("gone")), false},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"temporary error", customError{"temp", true}, true},
		{"non-temporary error", customError{"not temp", false}, false},
		{"io.EOF", io.EOF, true},
		{"io.ErrUnexpectedEOF", io.ErrUnexpectedEOF, true},
		{"net.ErrClosed", net.ErrClosed, true},
		{"url error with syscall", &url.Error{
			Op:  "Post",
			URL: "https://api.telegram.org",
			Err: &net.OpError{Op: "dial", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}},
		}, true},
		{"dns temporary error", &url.Error{
			Op:  "Post",
			URL: "https://api.telegram.org",
			Err: &net.DNSError{IsTemporary: true},
		}, true},
		{"unknown error defaults retryable", errors.New("api: 502"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Retryable(tt.err)
			if result != tt.expected {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}
