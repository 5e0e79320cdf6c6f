package timers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/platform/sqlite"
	"remindbot/internal/shared"
)

const testMigrations = "file://../../migrations/sqlite"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tdb := sqlite.NewTestDBFile(t)
	tdb.ApplyTestMigrations(t, testMigrations)
	return NewSQLiteStore(tdb.TxRunner, slog.Default())
}

func TestStoreSetGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	target := time.Now().Add(5 * time.Minute).Truncate(time.Millisecond)
	setAt := time.Now().Truncate(time.Millisecond)

	require.NoError(t, store.Set(ctx, Timer{Subject: "c1", Kind: KindRescue, Target: target, SetAt: setAt}))

	got, err := store.Get(ctx, "c1", KindRescue)
	require.NoError(t, err)
	assert.Equal(t, target.UnixMilli(), got.Target.UnixMilli())
	assert.Equal(t, setAt.UnixMilli(), got.SetAt.UnixMilli())
	assert.Equal(t, "c1", got.Subject)
	assert.Equal(t, KindRescue, got.Kind)
}

func TestStoreSetValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Set(ctx, Timer{Subject: "c1", Kind: "bogus", Target: time.Now()})
	assert.True(t, shared.IsValidation(err))

	err = store.Set(ctx, Timer{Subject: "", Kind: KindRescue, Target: time.Now()})
	assert.True(t, shared.IsValidation(err))
}

func TestStoreSupersede(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	t1 := now.Add(-time.Minute)
	t2 := now.Add(-30 * time.Second)

	require.NoError(t, store.Set(ctx, Timer{Subject: "c1", Kind: KindRescue, Target: t1, SetAt: now}))
	require.NoError(t, store.Set(ctx, Timer{Subject: "c1", Kind: KindRescue, Target: t2, SetAt: now}))

	got, err := store.Get(ctx, "c1", KindRescue)
	require.NoError(t, err)
	assert.Equal(t, t2.UnixMilli(), got.Target.UnixMilli())

	// The index must expose exactly one entry for the pair, never both.
	due, err := store.DueBefore(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Subject: "c1", Kind: KindRescue}}, due)
}

func TestStoreClearIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, Timer{Subject: "c1", Kind: KindRescue, Target: time.Now(), SetAt: time.Now()}))
	require.NoError(t, store.Clear(ctx, "c1", KindRescue))
	require.NoError(t, store.Clear(ctx, "c1", KindRescue), "повторный Clear не должен быть ошибкой")

	_, err := store.Get(ctx, "c1", KindRescue)
	assert.True(t, shared.IsNotFound(err))
}

func TestStoreClearIfTarget(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	old := now.Add(time.Minute)
	require.NoError(t, store.Set(ctx, Timer{Subject: "c1", Kind: KindRescue, Target: old, SetAt: now}))

	// Re-arm to a later deadline, then try to clear with the stale one.
	rearmed := now.Add(time.Hour)
	require.NoError(t, store.Set(ctx, Timer{Subject: "c1", Kind: KindRescue, Target: rearmed, SetAt: now}))
	require.NoError(t, store.ClearIfTarget(ctx, "c1", KindRescue, old))

	got, err := store.Get(ctx, "c1", KindRescue)
	require.NoError(t, err, "перевзведённый таймер должен пережить устаревший Clear")
	assert.Equal(t, rearmed.UnixMilli(), got.Target.UnixMilli())

	require.NoError(t, store.ClearIfTarget(ctx, "c1", KindRescue, rearmed))
	_, err = store.Get(ctx, "c1", KindRescue)
	assert.True(t, shared.IsNotFound(err))
}

func TestStoreDueBeforeOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	// Same deadline for two pairs: insertion order breaks the tie.
	shared1 := now.Add(-2 * time.Minute)
	require.NoError(t, store.Set(ctx, Timer{Subject: "c2", Kind: KindCardPull, Target: shared1, SetAt: now}))
	require.NoError(t, store.Set(ctx, Timer{Subject: "c3", Kind: KindRescue, Target: shared1, SetAt: now}))
	require.NoError(t, store.Set(ctx, Timer{Subject: "c1", Kind: KindRescue, Target: now.Add(-5 * time.Minute), SetAt: now}))
	require.NoError(t, store.Set(ctx, Timer{Subject: "c4", Kind: KindRescue, Target: now.Add(time.Hour), SetAt: now}))

	due, err := store.DueBefore(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Subject: "c1", Kind: KindRescue},
		{Subject: "c2", Kind: KindCardPull},
		{Subject: "c3", Kind: KindRescue},
	}, due, "раньше всех самый просроченный, при равенстве - порядок вставки")
}

func TestStoreDueBeforeExcludesFuture(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Set(ctx, Timer{Subject: "c1", Kind: KindRescue, Target: now.Add(time.Second), SetAt: now}))

	due, err := store.DueBefore(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestStoreFailureCounter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	window := 10 * time.Minute

	count, err := store.RecordFailure(ctx, "c1", KindRescue, now, window)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.RecordFailure(ctx, "c1", KindRescue, now.Add(time.Second), window)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Success resets the streak: the next failure counts from 1, not 3.
	require.NoError(t, store.ResetFailures(ctx, "c1", KindRescue))
	count, err = store.RecordFailure(ctx, "c1", KindRescue, now.Add(2*time.Second), window)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStoreFailureCounterExpires(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	window := 10 * time.Minute

	_, err := store.RecordFailure(ctx, "c1", KindRescue, now, window)
	require.NoError(t, err)

	// Past the validity window the stale streak is forgotten.
	count, err := store.RecordFailure(ctx, "c1", KindRescue, now.Add(window+time.Second), window)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStorePruneFailures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	window := 10 * time.Minute

	_, err := store.RecordFailure(ctx, "c1", KindRescue, now, window)
	require.NoError(t, err)
	_, err = store.RecordFailure(ctx, "c2", KindCardPull, now.Add(window), window)
	require.NoError(t, err)

	removed, err := store.PruneFailures(ctx, now.Add(window+time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStoreCorruptRecordTreatedAsAbsent(t *testing.T) {
	tdb := sqlite.NewTestDBFile(t)
	tdb.ApplyTestMigrations(t, testMigrations)
	store := NewSQLiteStore(tdb.TxRunner, slog.Default())
	ctx := context.Background()

	tdb.Exec(t, `INSERT INTO timers (subject, kind, target_ms, set_at_ms) VALUES (?, ?, ?, ?)`,
		"c1", "rescue", 0, 0)

	_, err := store.Get(ctx, "c1", KindRescue)
	assert.True(t, shared.IsNotFound(err), "битая запись должна считаться отсутствующей")
	assert.Equal(t, 0, tdb.CountRows(t, "timers"), "битая запись удаляется")

	// An unknown kind in the index is skipped and discarded as well.
	tdb.Exec(t, `INSERT INTO timers (subject, kind, target_ms, set_at_ms) VALUES (?, ?, ?, ?)`,
		"c2", "bogus", 1, 1)
	due, err := store.DueBefore(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.Equal(t, 0, tdb.CountRows(t, "timers"))
}
