package timers

import "time"

// Kind identifies a reminder category. The set is closed: a stored record
// with an unknown kind is treated as corrupt.
type Kind string

const (
	// KindRescue is the rescue cooldown reminder.
	KindRescue Kind = "rescue"
	// KindCardPull is the card pull cooldown reminder.
	KindCardPull Kind = "cardPull"
)

// Kinds lists every valid kind in a stable order.
var Kinds = []Kind{KindRescue, KindCardPull}

// Valid reports whether k belongs to the closed kind set.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind maps free-form chat aliases to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "rescue", "res":
		return KindRescue, true
	case "cardpull", "card", "pull":
		return KindCardPull, true
	}
	return "", false
}

// Timer is one live deferred notification for a (subject, kind) pair.
// At most one live Timer exists per pair; a newer Set supersedes it.
type Timer struct {
	Subject string
	Kind    Kind
	Target  time.Time // fire deadline
	SetAt   time.Time // creation or last re-arm instant
}

// Entry is a due-index entry returned by Store.DueBefore.
type Entry struct {
	Subject string
	Kind    Kind
}

// TimerState enumerates the states the Status Reader can report.
type TimerState int

const (
	// StateNone means no live timer exists for the pair.
	StateNone TimerState = iota
	// StateReady means the timer is due but not yet processed by the loop.
	StateReady
	// StatePending means the timer fires in Remaining from now.
	StatePending
)

func (s TimerState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StatePending:
		return "pending"
	default:
		return "none"
	}
}

// TimerStatus is the read-only projection of one (subject, kind) pair.
type TimerStatus struct {
	State     TimerState
	Remaining time.Duration // meaningful only for StatePending
}
