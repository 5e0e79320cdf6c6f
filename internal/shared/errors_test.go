package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	base := errors.New("boom")

	if got := Wrap(nil, "ctx"); got != nil {
		t.Errorf("Wrap(nil) = %v, want nil", got)
	}
	if got := Wrap(base, ""); got != base {
		t.Errorf("Wrap with empty context should return original error")
	}

	wrapped := Wrap(base, "loading timer")
	if wrapped.Error() != "loading timer: boom" {
		t.Errorf("unexpected message: %q", wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should unwrap to original")
	}
}

func TestWrapf(t *testing.T) {
	base := ErrNotFound
	wrapped := Wrapf(base, "timer %s/%s", "c1", "rescue")
	if wrapped.Error() != "timer c1/rescue: not found" {
		t.Errorf("unexpected message: %q", wrapped.Error())
	}
	if !IsNotFound(wrapped) {
		t.Error("wrapped sentinel should still classify")
	}
	if Wrapf(nil, "x") != nil {
		t.Error("Wrapf(nil) should be nil")
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"not found", fmt.Errorf("q: %w", ErrNotFound), IsNotFound, true},
		{"not found negative", errors.New("other"), IsNotFound, false},
		{"validation", ErrValidation, IsValidation, true},
		{"conflict", Wrap(ErrConflict, "upsert"), IsConflict, true},
		{"corrupt", Wrap(ErrCorruptRecord, "scan"), IsCorruptRecord, true},
		{"dependency", ErrDependencyFailure, IsDependencyFailure, true},
		{"canceled", context.Canceled, IsCanceled, true},
		{"nil canceled", nil, IsCanceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type fakeNetError struct{ timeout bool }

func (e fakeNetError) Error() string   { return "net" }
func (e fakeNetError) Timeout() bool   { return e.timeout }
func (e fakeNetError) Temporary() bool { return e.timeout }

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"sentinel", Wrap(ErrTimeout, "send"), true},
		{"net timeout", fakeNetError{timeout: true}, true},
		{"net non-timeout", fakeNetError{timeout: false}, false},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTimeout(tt.err); got != tt.want {
				t.Errorf("IsTimeout(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
