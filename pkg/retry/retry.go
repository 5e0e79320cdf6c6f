package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"time"
)

// Policy defines a bounded, fixed-backoff retry policy. The backoff is a
// constant delay, not exponential: a deferred send is re-attempted after the
// same delay until MaxAttempts consecutive failures, then dropped.
type Policy struct {
	// MaxAttempts is the maximum number of consecutive failed attempts
	// before the operation is abandoned.
	MaxAttempts int
	// Backoff is the fixed delay before each re-attempt.
	Backoff time.Duration
	// Window is how long a failure streak stays valid. A streak older than
	// Window is forgotten so stale failures do not block unrelated work.
	Window time.Duration
}

// DefaultPolicy returns the delivery retry policy used across the application.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Window:      10 * time.Minute,
	}
}

// Normalize validates the policy and fills unset fields with defaults.
func (p *Policy) Normalize() error {
	if p.MaxAttempts <= 0 {
		return errors.New("retry: MaxAttempts must be positive")
	}
	if p.Backoff <= 0 {
		return errors.New("retry: Backoff must be positive")
	}
	if p.Window <= 0 {
		p.Window = 10 * time.Minute
	}
	if p.Window < p.Backoff {
		return errors.New("retry: Window cannot be shorter than Backoff")
	}
	return nil
}

// Exhausted reports whether a failure count has reached the attempt limit.
func (p Policy) Exhausted(failures int) bool {
	return failures >= p.MaxAttempts
}

// AfterFunc schedules fn to run after d. The indirection exists so tests can
// drive deferred retries without real wall-clock waits.
type AfterFunc func(d time.Duration, fn func())

// StdAfter is the production AfterFunc backed by time.AfterFunc.
func StdAfter(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// PermanentError wraps an error that retrying cannot fix, for example a
// destination that no longer exists.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not retryable. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked permanent anywhere in its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Retryable reports whether err looks like a transient failure worth
// retrying. Context cancellation and permanent errors are never retryable;
// timeouts and common network failures are.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	type netError interface {
		Timeout() bool
	}
	if ne, ok := err.(netError); ok && ne.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if ne, ok := urlErr.Err.(netError); ok && ne.Timeout() {
			return true
		}
		var dnsErr *net.DNSError
		if errors.As(urlErr.Err, &dnsErr) && dnsErr.IsTemporary {
			return true
		}
		var opErr *net.OpError
		if errors.As(urlErr.Err, &opErr) {
			return true
		}
	}

	type temporary interface {
		Temporary() bool
	}
	if t, ok := err.(temporary); ok {
		return t.Temporary()
	}

	// Unknown transport errors default to retryable: the delivery layer
	// bounds them by MaxAttempts anyway.
	return true
}
