package timers

import (
	"context"
	"time"
)

// Store is the sole owner of Timer and failure-counter records. Every
// mutation keeps the timer record and its due-index entry consistent: callers
// never observe an index entry without a matching record or vice versa.
//
// Absent timers are reported as shared.ErrNotFound. A stored record that does
// not match the expected shape is discarded, logged and reported as absent;
// Get never propagates a parse failure.
type Store interface {
	// Set upserts the timer for (t.Subject, t.Kind), atomically superseding
	// any prior record and its index entry.
	Set(ctx context.Context, t Timer) error

	// Get returns the live timer for the pair, or shared.ErrNotFound.
	Get(ctx context.Context, subject string, kind Kind) (Timer, error)

	// Clear removes the timer and its index entry. Clearing an absent timer
	// is a no-op, not an error.
	Clear(ctx context.Context, subject string, kind Kind) error

	// ClearIfTarget removes the timer only while its deadline still equals
	// target, so a concurrent re-arm is never wiped out by a stale caller.
	ClearIfTarget(ctx context.Context, subject string, kind Kind, target time.Time) error

	// DueBefore returns every pair whose deadline is at or before the given
	// instant, ascending by deadline, ties broken by insertion order.
	DueBefore(ctx context.Context, at time.Time) ([]Entry, error)

	// RecordFailure increments the consecutive-failure counter for the pair
	// and returns the new count. A counter whose validity window has lapsed
	// counts from zero again. The expiry window is refreshed on every call.
	RecordFailure(ctx context.Context, subject string, kind Kind, now time.Time, window time.Duration) (int, error)

	// ResetFailures drops the failure counter for the pair. Idempotent.
	ResetFailures(ctx context.Context, subject string, kind Kind) error

	// PruneFailures deletes counters whose validity window lapsed before now
	// and returns how many were removed.
	PruneFailures(ctx context.Context, now time.Time) (int64, error)
}
