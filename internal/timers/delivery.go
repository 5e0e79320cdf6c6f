package timers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"remindbot/internal/shared"
	"remindbot/pkg/retry"
)

// Transport delivers a rendered notification to a subject. Implementations
// must bound every send with their own timeout so a stuck transport cannot
// stall the scheduler loop.
type Transport interface {
	Send(ctx context.Context, subject string, text string) error
}

// Deliverer pushes notifications through the transport with bounded
// fixed-backoff retries. The failure streak lives in the store as an expiring
// counter, so a restart mid-streak resumes the count instead of starting
// over. While a retry is pending the (subject, kind) pair is marked in-flight
// and further Deliver calls for it are suppressed, so the poll loop cannot
// issue a parallel delivery for the same deadline.
type Deliverer struct {
	store     Store
	transport Transport
	policy    retry.Policy
	log       *slog.Logger

	// Переопределяются в тестах для детерминированного времени.
	now   func() time.Time
	after retry.AfterFunc

	mu       sync.Mutex
	inFlight map[Entry]struct{}
}

func NewDeliverer(store Store, transport Transport, policy retry.Policy, log *slog.Logger) (*Deliverer, error) {
	if err := policy.Normalize(); err != nil {
		return nil, shared.Wrap(err, "delivery policy")
	}
	return &Deliverer{
		store:     store,
		transport: transport,
		policy:    policy,
		log:       log.With("component", "delivery"),
		now:       time.Now,
		after:     retry.StdAfter,
		inFlight:  make(map[Entry]struct{}),
	}, nil
}

// Deliver attempts one transport send for the pair and reports whether it
// succeeded. On success the failure counter is reset and the caller is
// expected to clear the timer. On a retryable failure the counter is bumped
// and an identical send is scheduled after the backoff delay; the timer stays
// in place until the streak either succeeds or exhausts. Permanent transport
// errors skip the retries entirely and drop the notification. A canceled
// context is neither: the timer stays untouched and the recovery pass picks
// it up on the next start.
func (d *Deliverer) Deliver(ctx context.Context, subject string, kind Kind, message string) bool {
	key := Entry{Subject: subject, Kind: kind}
	if !d.acquire(key) {
		d.log.Debug("delivery already in flight, skipping",
			"subject", subject, "kind", kind)
		return false
	}

	if err := d.transport.Send(ctx, subject, message); err != nil {
		d.failed(ctx, key, message, err)
		return false
	}

	if err := d.store.ResetFailures(ctx, subject, kind); err != nil {
		d.log.Warn("failed to reset failure counter",
			"subject", subject, "kind", kind, "error", err)
	}
	d.release(key)
	return true
}

// failed drives the Retrying(n) branch: bump the persisted counter, then
// either schedule the next attempt or give up. The pair stays in-flight for
// as long as a deferred retry is pending.
func (d *Deliverer) failed(ctx context.Context, key Entry, message string, sendErr error) {
	if shared.IsCanceled(sendErr) {
		// Отмена контекста - это остановка процесса, а не сбой транспорта.
		// Таймер и счётчик не трогаем: восстановительный проход после
		// рестарта доставит уведомление заново.
		d.log.Warn("delivery interrupted, leaving timer for recovery",
			"subject", key.Subject, "kind", key.Kind, "error", sendErr)
		d.release(key)
		return
	}

	if retry.IsPermanent(sendErr) || !retry.Retryable(sendErr) {
		d.log.Error("permanent delivery failure, dropping notification",
			"subject", key.Subject, "kind", key.Kind, "error", sendErr)
		d.exhaust(ctx, key)
		return
	}

	count, err := d.store.RecordFailure(ctx, key.Subject, key.Kind, d.now(), d.policy.Window)
	if err != nil {
		// Без счётчика продолжать серию нельзя: следующий тик цикла
		// попробует снова с чистого листа.
		d.log.Error("failed to record delivery failure",
			"subject", key.Subject, "kind", key.Kind, "error", err)
		d.release(key)
		return
	}

	if d.policy.Exhausted(count) {
		d.log.Error("delivery attempts exhausted, dropping notification",
			"subject", key.Subject, "kind", key.Kind,
			"attempts", count, "error", sendErr)
		d.exhaust(ctx, key)
		return
	}

	d.log.Warn("delivery failed, retry scheduled",
		"subject", key.Subject, "kind", key.Kind,
		"attempt", count, "max_attempts", d.policy.MaxAttempts,
		"backoff", d.policy.Backoff, "error", sendErr)
	d.after(d.policy.Backoff, func() { d.retry(key, message) })
}

// retry is the deferred re-send. It runs outside the poll loop's cadence and
// re-fetches the live record first: a cleared or re-armed timer abandons the
// streak without a send.
func (d *Deliverer) retry(key Entry, message string) {
	ctx := context.Background()

	tm, err := d.store.Get(ctx, key.Subject, key.Kind)
	if err != nil {
		if !shared.IsNotFound(err) {
			d.log.Error("failed to re-fetch timer before retry",
				"subject", key.Subject, "kind", key.Kind, "error", err)
		}
		d.release(key)
		return
	}
	if tm.Target.After(d.now()) {
		// Перевзведён на будущее - серия ретраев больше не актуальна.
		d.release(key)
		return
	}

	if err := d.transport.Send(ctx, key.Subject, message); err != nil {
		d.failed(ctx, key, message, err)
		return
	}

	// The loop only clears timers it delivered itself, so a successful
	// deferred retry clears its own. ClearIfTarget guards against the pair
	// having been re-armed between the re-fetch and the send.
	if err := d.store.ClearIfTarget(ctx, key.Subject, key.Kind, tm.Target); err != nil {
		d.log.Error("failed to clear timer after retry",
			"subject", key.Subject, "kind", key.Kind, "error", err)
	}
	if err := d.store.ResetFailures(ctx, key.Subject, key.Kind); err != nil {
		d.log.Warn("failed to reset failure counter",
			"subject", key.Subject, "kind", key.Kind, "error", err)
	}
	d.log.Info("delivered after retry", "subject", key.Subject, "kind", key.Kind)
	d.release(key)
}

// exhaust ends the streak: both the timer and the counter go away, nothing
// will be re-attempted. There is no escalation beyond the log line.
func (d *Deliverer) exhaust(ctx context.Context, key Entry) {
	if err := d.store.Clear(ctx, key.Subject, key.Kind); err != nil {
		d.log.Error("failed to clear exhausted timer",
			"subject", key.Subject, "kind", key.Kind, "error", err)
	}
	if err := d.store.ResetFailures(ctx, key.Subject, key.Kind); err != nil {
		d.log.Warn("failed to reset failure counter",
			"subject", key.Subject, "kind", key.Kind, "error", err)
	}
	d.release(key)
}

func (d *Deliverer) acquire(key Entry) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[key]; busy {
		return false
	}
	d.inFlight[key] = struct{}{}
	return true
}

func (d *Deliverer) release(key Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, key)
}

// InFlight reports whether a deferred retry is currently pending for the
// pair. Used by the status surface for observability only.
func (d *Deliverer) InFlight(subject string, kind Kind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, busy := d.inFlight[Entry{Subject: subject, Kind: kind}]
	return busy
}
