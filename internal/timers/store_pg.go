package timers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"remindbot/internal/platform/pg"
	"remindbot/internal/shared"
)

// PGStore persists timers in PostgreSQL. It carries the same semantics as
// SQLiteStore and exists for deployments running several bot instances
// against one shared database: every mutation is a single transaction, so
// concurrent instances never observe a record without its index entry.
type PGStore struct {
	runner *pg.TxRunner
	log    *slog.Logger
}

var _ Store = (*PGStore)(nil)

// NewPGStore creates a store on top of a pgx connection pool wrapper.
// The schema must already be migrated (migrations/pg).
func NewPGStore(runner *pg.TxRunner, log *slog.Logger) *PGStore {
	if log == nil {
		log = slog.Default()
	}
	return &PGStore{runner: runner, log: log.With("component", "timer_store")}
}

func (s *PGStore) Set(ctx context.Context, t Timer) error {
	if !t.Kind.Valid() {
		return shared.Wrapf(shared.ErrValidation, "unknown kind %q", t.Kind)
	}
	if t.Subject == "" || t.Target.IsZero() {
		return shared.Wrap(shared.ErrValidation, "subject and target are required")
	}

	return s.runner.WithinTx(ctx, func(ctx context.Context) error {
		q := s.runner.GetQuerier(ctx)
		if _, err := q.Exec(ctx,
			`DELETE FROM timers WHERE subject = $1 AND kind = $2`, t.Subject, string(t.Kind)); err != nil {
			return shared.Wrap(err, "delete stale timer")
		}
		_, err := q.Exec(ctx,
			`INSERT INTO timers (subject, kind, target_ms, set_at_ms) VALUES ($1, $2, $3, $4)`,
			t.Subject, string(t.Kind), t.Target.UnixMilli(), t.SetAt.UnixMilli())
		return shared.Wrap(err, "insert timer")
	})
}

func (s *PGStore) Get(ctx context.Context, subject string, kind Kind) (Timer, error) {
	q := s.runner.GetQuerier(ctx)

	var targetMS, setAtMS int64
	err := q.QueryRow(ctx,
		`SELECT target_ms, set_at_ms FROM timers WHERE subject = $1 AND kind = $2`,
		subject, string(kind)).Scan(&targetMS, &setAtMS)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PGStore) Clear(ctx context.Context, subject string, kind Kind) error {
	_, err := s.runner.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM timers WHERE subject = $1 AND kind = $2`, subject, string(kind))
	return shared.Wrap(err, "clear timer")
}

func (s *PGStore) ClearIfTarget(ctx context.Context, subject string, kind Kind, target time.Time) error {
	_, err := s.runner.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM timers WHERE subject = $1 AND kind = $2 AND target_ms = $3`,
		subject, string(kind), target.UnixMilli())
	return shared.Wrap(err, "clear timer at target")
}

func (s *PGStore) DueBefore(ctx context.Context, at time.Time) ([]Entry, error) {
	q := s.runner.GetQuerier(ctx)

	rows, err := q.Query(ctx,
		`SELECT subject, kind FROM timers WHERE target_ms <= $1 ORDER BY target_ms, id`,
		at.UnixMilli())
	if err != nil {
		return nil, shared.Wrap(err, "query due timers")
	}
	defer rows.Close()

	var due, corrupt []Entry
	for rows.Next() {
		var subject, kindRaw string
		if err := rows.Scan(&subject, &kindRaw); err != nil {
			return nil, shared.Wrap(err, "scan due timer")
		}
		kind := Kind(kindRaw)
		if !kind.Valid() {
			corrupt = append(corrupt, Entry{Subject: subject, Kind: kind})
			continue
		}
		due = append(due, Entry{Subject: subject, Kind: kind})
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Wrap(err, "iterate due timers")
	}
	rows.Close()

	for _, e := range corrupt {
		s.discardCorrupt(ctx, e.Subject, e.Kind, 0)
	}
	return due, nil
}

func (s *PGStore) RecordFailure(ctx context.Context, subject string, kind Kind, now time.Time, window time.Duration) (int, error) {
	var count int
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		q := s.runner.GetQuerier(ctx)

		var prev int
		var expiresMS int64
		err := q.QueryRow(ctx,
			`SELECT count, expires_ms FROM delivery_failures WHERE subject = $1 AND kind = $2 FOR UPDATE`,
			subject, string(kind)).Scan(&prev, &expiresMS)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			prev = 0
		case err != nil:
			return shared.Wrap(err, "query failure counter")
		case expiresMS <= now.UnixMilli():
			prev = 0
		}

		count = prev + 1
		_, err = q.Exec(ctx,
			`INSERT INTO delivery_failures (subject, kind, count, expires_ms) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (subject, kind) DO UPDATE SET count = EXCLUDED.count, expires_ms = EXCLUDED.expires_ms`,
			subject, string(kind), count, now.Add(window).UnixMilli())
		return shared.Wrap(err, "upsert failure counter")
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PGStore) ResetFailures(ctx context.Context, subject string, kind Kind) error {
	_, err := s.runner.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM delivery_failures WHERE subject = $1 AND kind = $2`, subject, string(kind))
	return shared.Wrap(err, "reset failure counter")
}

func (s *PGStore) PruneFailures(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.runner.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM delivery_failures WHERE expires_ms <= $1`, now.UnixMilli())
	if err != nil {
		return 0, shared.Wrap(err, "prune failure counters")
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) discardCorrupt(ctx context.Context, subject string, kind Kind, targetMS int64) {
	s.log.Warn("discarding corrupt timer record",
		"subject", subject, "kind", string(kind), "target_ms", targetMS)
	if _, err := s.runner.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM timers WHERE subject = $1 AND kind = $2`, subject, string(kind)); err != nil {
		s.log.Error("failed to discard corrupt timer record", "error", err)
	}
}
