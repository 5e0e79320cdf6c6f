package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEveryExecutesJob(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Stop()

	var runs atomic.Int32
	s.RunEvery(10*time.Millisecond, "test", 0, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, 5*time.Millisecond, "задача должна выполняться периодически")
}

func TestRunEverySkipsOverlap(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Stop()

	var active, maxActive atomic.Int32
	s.RunEvery(5*time.Millisecond, "slow", 0, func(ctx context.Context) error {
		cur := active.Add(1)
		defer active.Add(-1)
		if cur > maxActive.Load() {
			maxActive.Store(cur)
		}
		time.Sleep(30 * time.Millisecond)
		return nil
	})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), maxActive.Load(), "запуски одной задачи не перекрываются")
}

func TestRunEveryAppliesTimeout(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Stop()

	var expired atomic.Bool
	s.RunEvery(10*time.Millisecond, "timed", 20*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			expired.Store(true)
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	require.Eventually(t, func() bool {
		return expired.Load()
	}, time.Second, 5*time.Millisecond, "контекст задачи должен истечь по таймауту")
}

func TestRunEverySurvivesPanic(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Stop()

	var runs atomic.Int32
	s.RunEvery(10*time.Millisecond, "panicky", 0, func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		return nil
	})

	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, 5*time.Millisecond, "паника не должна останавливать планировщик")
}

func TestRunEveryToleratesErrors(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Stop()

	var runs atomic.Int32
	s.RunEvery(10*time.Millisecond, "failing", 0, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("transient")
	})

	require.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, time.Second, 5*time.Millisecond, "ошибка задачи не снимает её с расписания")
}

func TestRunCronRejectsBadSchedule(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Stop()

	err := s.RunCron("not a schedule", "bad", 0, func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRunCronExecutesJob(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Stop()

	var runs atomic.Int32
	require.NoError(t, s.RunCron("@every 10ms", "cron-test", 0, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()

	require.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestStopWaitsForRunningJob(t *testing.T) {
	s := New(context.Background(), nil)

	started := make(chan struct{})
	var finished atomic.Bool
	s.RunEvery(5*time.Millisecond, "long", 0, func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	<-started
	s.Stop()
	assert.True(t, finished.Load(), "Stop должен дождаться выполняющейся задачи")
}

func TestStopContextHonorsDeadline(t *testing.T) {
	s := New(context.Background(), nil)

	started := make(chan struct{})
	s.RunEvery(5*time.Millisecond, "stuck", 0, func(ctx context.Context) error {
		close(started)
		time.Sleep(500 * time.Millisecond)
		return nil
	})

	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.StopContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParentContextStopsScheduler(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := New(parent, nil)
	s.Start()

	var runs atomic.Int32
	s.RunEvery(10*time.Millisecond, "bound", 0, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)
	before := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, runs.Load(), "после отмены контекста задачи не выполняются")
}
