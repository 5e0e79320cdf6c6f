package timers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"remindbot/internal/platform/sqlite"
	"remindbot/internal/shared"
)

// SQLiteStore persists timers in an embedded SQLite database. The timer
// record and its due-index entry live in one table backed by a composite
// index, so a single transaction keeps both consistent.
type SQLiteStore struct {
	runner *sqlite.TxRunner
	log    *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store on top of an initialized TxRunner.
// The schema must already be migrated (migrations/sqlite).
func NewSQLiteStore(runner *sqlite.TxRunner, log *slog.Logger) *SQLiteStore {
	if log == nil {
		log = slog.Default()
	}
	return &SQLiteStore{runner: runner, log: log.With("component", "timer_store")}
}

// Set upserts the timer record. Delete-then-insert inside one IMMEDIATE
// transaction gives the new row a fresh rowid, which is what makes due-order
// ties break by insertion order.
func (s *SQLiteStore) Set(ctx context.Context, t Timer) error {
	if !t.Kind.Valid() {
		return shared.Wrapf(shared.ErrValidation, "unknown kind %q", t.Kind)
	}
	if t.Subject == "" || t.Target.IsZero() {
		return shared.Wrap(shared.ErrValidation, "subject and target are required")
	}

	return s.runner.WithinTx(ctx, func(ctx context.Context) error {
		q := s.runner.GetQuerier(ctx)
		if _, err := q.ExecContext(ctx,
			`DELETE FROM timers WHERE subject = ? AND kind = ?`, t.Subject, string(t.Kind)); err != nil {
			return shared.Wrap(err, "delete stale timer")
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO timers (subject, kind, target_ms, set_at_ms) VALUES (?, ?, ?, ?)`,
			t.Subject, string(t.Kind), t.Target.UnixMilli(), t.SetAt.UnixMilli())
		return shared.Wrap(err, "insert timer")
	})
}

// Get returns the live timer or shared.ErrNotFound. A record that fails
// validation is discarded and reported as absent.
func (s *SQLiteStore) Get(ctx context.Context, subject string, kind Kind) (Timer, error) {
	q := s.runner.GetQuerier(ctx)

	var targetMS, setAtMS int64
	err := q.QueryRowContext(ctx,
		`SELECT target_ms, set_at_ms FROM timers WHERE subject = ? AND kind = ?`,
		subject, string(kind)).Scan(&targetMS, &setAtMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Timer{}, shared.ErrNotFound
	}
	if err != nil {
		return Timer{}, shared.Wrap(err, "query timer")
	}

	if targetMS <= 0 {
		s.discardCorrupt(ctx, subject, kind, targetMS)
		return Timer{}, shared.ErrNotFound
	}

	return Timer{
		Subject: subject,
		Kind:    kind,
		Target:  time.UnixMilli(targetMS),
		SetAt:   time.UnixMilli(setAtMS),
	}, nil
}

// Clear removes the timer record and index entry. Idempotent.
func (s *SQLiteStore) Clear(ctx context.Context, subject string, kind Kind) error {
	return s.runner.WithinTx(ctx, func(ctx context.Context) error {
		q := s.runner.GetQuerier(ctx)
		_, err := q.ExecContext(ctx,
			`DELETE FROM timers WHERE subject = ? AND kind = ?`, subject, string(kind))
		return shared.Wrap(err, "clear timer")
	})
}

// ClearIfTarget removes the timer only while its deadline is unchanged.
func (s *SQLiteStore) ClearIfTarget(ctx context.Context, subject string, kind Kind, target time.Time) error {
	return s.runner.WithinTx(ctx, func(ctx context.Context) error {
		q := s.runner.GetQuerier(ctx)
		_, err := q.ExecContext(ctx,
			`DELETE FROM timers WHERE subject = ? AND kind = ? AND target_ms = ?`,
			subject, string(kind), target.UnixMilli())
		return shared.Wrap(err, "clear timer at target")
	})
}

// DueBefore returns every due pair ordered by deadline, then insertion order.
func (s *SQLiteStore) DueBefore(ctx context.Context, at time.Time) ([]Entry, error) {
	q := s.runner.GetQuerier(ctx)

	rows, err := q.QueryContext(ctx,
		`SELECT subject, kind FROM timers WHERE target_ms <= ? ORDER BY target_ms, id`,
		at.UnixMilli())
	if err != nil {
		return nil, shared.Wrap(err, "query due timers")
	}

	var due, corrupt []Entry
	for rows.Next() {
		var subject, kindRaw string
		if err := rows.Scan(&subject, &kindRaw); err != nil {
			rows.Close()
			return nil, shared.Wrap(err, "scan due timer")
		}
		kind := Kind(kindRaw)
		if !kind.Valid() {
			corrupt = append(corrupt, Entry{Subject: subject, Kind: kind})
			continue
		}
		due = append(due, Entry{Subject: subject, Kind: kind})
	}
	err = rows.Err()
	rows.Close()

	// Deleting while the result set is open would starve a single-connection
	// pool, so corrupt rows are discarded after the scan.
	for _, e := range corrupt {
		s.discardCorrupt(ctx, e.Subject, e.Kind, 0)
	}
	return due, err
}

// RecordFailure bumps the consecutive-failure counter inside one transaction
// and refreshes its expiry window. An expired counter restarts from zero.
func (s *SQLiteStore) RecordFailure(ctx context.Context, subject string, kind Kind, now time.Time, window time.Duration) (int, error) {
	var count int
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		q := s.runner.GetQuerier(ctx)

		var prev int
		var expiresMS int64
		err := q.QueryRowContext(ctx,
			`SELECT count, expires_ms FROM delivery_failures WHERE subject = ? AND kind = ?`,
			subject, string(kind)).Scan(&prev, &expiresMS)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			prev = 0
		case err != nil:
			return shared.Wrap(err, "query failure counter")
		case expiresMS <= now.UnixMilli():
			prev = 0
		}

		count = prev + 1
		_, err = q.ExecContext(ctx,
			`INSERT INTO delivery_failures (subject, kind, count, expires_ms) VALUES (?, ?, ?, ?)
			 ON CONFLICT (subject, kind) DO UPDATE SET count = excluded.count, expires_ms = excluded.expires_ms`,
			subject, string(kind), count, now.Add(window).UnixMilli())
		return shared.Wrap(err, "upsert failure counter")
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ResetFailures drops the counter for the pair. Idempotent.
func (s *SQLiteStore) ResetFailures(ctx context.Context, subject string, kind Kind) error {
	return s.runner.WithinTx(ctx, func(ctx context.Context) error {
		q := s.runner.GetQuerier(ctx)
		_, err := q.ExecContext(ctx,
			`DELETE FROM delivery_failures WHERE subject = ? AND kind = ?`, subject, string(kind))
		return shared.Wrap(err, "reset failure counter")
	})
}

// PruneFailures removes counters whose validity window lapsed before now.
func (s *SQLiteStore) PruneFailures(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		q := s.runner.GetQuerier(ctx)
		res, err := q.ExecContext(ctx,
			`DELETE FROM delivery_failures WHERE expires_ms <= ?`, now.UnixMilli())
		if err != nil {
			return shared.Wrap(err, "prune failure counters")
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	return removed, err
}

// discardCorrupt deletes a record that does not match the expected shape.
// The timer is then simply absent; it self-heals on the next Set.
func (s *SQLiteStore) discardCorrupt(ctx context.Context, subject string, kind Kind, targetMS int64) {
	s.log.Warn("discarding corrupt timer record",
		"subject", subject, "kind", string(kind), "target_ms", targetMS)
	q := s.runner.GetQuerier(ctx)
	if _, err := q.ExecContext(ctx,
		`DELETE FROM timers WHERE subject = ? AND kind = ?`, subject, string(kind)); err != nil {
		s.log.Error("failed to discard corrupt timer record", "error", err)
	}
}
