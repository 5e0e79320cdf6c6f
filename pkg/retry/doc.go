// Package retry defines the bounded fixed-backoff retry policy used by the
// delivery layer, plus error classification helpers.
//
// The policy is deliberately simple: a constant delay between attempts, a
// small fixed attempt limit, and a validity window after which a failure
// streak is forgotten. Exponential backoff buys nothing here because the
// failure counter is persisted and shared across process restarts.
//
// Usage:
//
//	p := retry.DefaultPolicy()
//	if p.Exhausted(failures) {
//	    // drop the notification, clear state
//	}
//
// Errors that retrying cannot fix are marked with Permanent:
//
//	if chatGone(err) {
//	    return retry.Permanent(err)
//	}
//
// Deferred re-attempts are scheduled through an AfterFunc so tests can inject
// a synchronous implementation instead of waiting on real timers.
package retry
