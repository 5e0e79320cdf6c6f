// Package scheduler запускает фоновые задачи бота: тикер опроса дедлайнов и
// cron-очистку счётчиков неудач. Обёртка над robfig/cron с единым
// журналированием, таймаутами и защитой от перекрытия запусков.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc представляет функцию фоновой задачи.
type JobFunc func(ctx context.Context) error

// Scheduler управляет периодическими задачами процесса. Запуски одной задачи
// никогда не перекрываются: если предыдущий ещё идёт, очередной пропускается.
type Scheduler struct {
	cron   *cron.Cron
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New создает планировщик, привязанный к родительскому контексту: его отмена
// останавливает все задачи.
func New(parent context.Context, log *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "scheduler")

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger{log: log.With("component", "cron")}),
		),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// RunEvery запускает задачу с фиксированным интервалом. Первый запуск
// происходит через interval, не сразу: стартовые проходы вызывающая сторона
// делает сама до Start.
func (s *Scheduler) RunEvery(interval time.Duration, name string, timeout time.Duration, job JobFunc) {
	var running sync.Mutex

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runJob(name, timeout, job, &running)
			case <-s.ctx.Done():
				s.log.Debug("ticker job stopped", "name", name)
				return
			}
		}
	}()

	s.log.Info("ticker job added", "name", name, "interval", interval)
}

// RunCron добавляет задачу по cron-расписанию ("@hourly", "30 * * * *").
func (s *Scheduler) RunCron(spec string, name string, timeout time.Duration, job JobFunc) error {
	var running sync.Mutex

	_, err := s.cron.AddFunc(spec, func() {
		s.runJob(name, timeout, job, &running)
	})
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", name, err)
	}

	s.log.Info("cron job added", "name", name, "schedule", spec)
	return nil
}

// Start запускает cron-часть планировщика. Ticker-задачи работают с момента
// добавления.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.log.Info("starting scheduler")
		s.cron.Start()

		go func() {
			<-s.ctx.Done()
			s.stopOnce.Do(s.stop)
		}()
	})
}

// Stop останавливает планировщик и ждет завершения выполняющихся задач.
func (s *Scheduler) Stop() {
	s.cancel()
	s.stopOnce.Do(s.stop)
}

// StopContext останавливает планировщик, но ждёт завершения задач не дольше
// дедлайна контекста. Остановка доводится до конца в любом случае.
func (s *Scheduler) StopContext(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.stopOnce.Do(s.stop)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stop deadline exceeded")
		return ctx.Err()
	}
}

func (s *Scheduler) stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// runJob выполняет задачу с защитой от перекрытия, паник и зависаний.
func (s *Scheduler) runJob(name string, timeout time.Duration, job JobFunc, running *sync.Mutex) {
	if !running.TryLock() {
		s.log.Debug("skipping job run, previous still running", "name", name)
		return
	}
	defer running.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", "name", name, "panic", r)
		}
	}()

	ctx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := job(ctx)
	elapsed := time.Since(start)

	if err != nil {
		s.log.Error("job failed", "name", name, "error", err, "duration", elapsed)
		return
	}
	s.log.Debug("job completed", "name", name, "duration", elapsed)
}

// cronLogger адаптирует логгер robfig/cron к slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
