package timers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"remindbot/internal/shared"
)

// PollInterval задаёт частоту опроса индекса дедлайнов. Константа, а не
// настройка: цикл рассчитан на один активный планировщик на процесс.
const PollInterval = 15 * time.Second

// latenessWarnAfter - порог, после которого просрочка попадает в лог.
// На обработку не влияет: опоздавший таймер доставляется как обычный.
const latenessWarnAfter = time.Minute

// Engine связывает хранилище и доставку: взводит таймеры, опрашивает
// индекс дедлайнов и отвечает на запросы статуса.
type Engine struct {
	store     Store
	deliverer *Deliverer
	transport Transport
	log       *slog.Logger

	// Подменяется в тестах.
	now func() time.Time
}

func NewEngine(store Store, deliverer *Deliverer, transport Transport, log *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		deliverer: deliverer,
		transport: transport,
		log:       log.With("component", "engine"),
		now:       time.Now,
	}
}

// Arm взводит таймер на указанный момент, заменяя прежний для этой пары.
// При notifyOnSet шлёт подтверждение в чат; неудача подтверждения не
// откатывает взвод.
func (e *Engine) Arm(ctx context.Context, subject string, kind Kind, target time.Time, notifyOnSet bool) error {
	now := e.now()
	if err := e.store.Set(ctx, Timer{Subject: subject, Kind: kind, Target: target, SetAt: now}); err != nil {
		return err
	}
	e.log.Info("timer armed",
		"subject", subject, "kind", kind,
		"target", target, "in", target.Sub(now).Round(time.Second))

	if notifyOnSet {
		if err := e.transport.Send(ctx, subject, renderArmed(kind, target.Sub(now))); err != nil {
			e.log.Warn("failed to confirm armed timer",
				"subject", subject, "kind", kind, "error", err)
		}
	}
	return nil
}

// ProcessDue - тело одного тика цикла: снимок просроченных пар, для каждой
// перечитывание живой записи, затем синхронная доставка в порядке дедлайнов.
// Тот же проход используется при старте процесса для доставки напоминаний,
// пропущенных за время простоя.
func (e *Engine) ProcessDue(ctx context.Context) error {
	now := e.now()
	due, err := e.store.DueBefore(ctx, now)
	if err != nil {
		return shared.Wrap(err, "scan due timers")
	}
	for _, entry := range due {
		e.processEntry(ctx, entry, now)
	}
	return nil
}

func (e *Engine) processEntry(ctx context.Context, entry Entry, now time.Time) {
	// Между снимком индекса и обработкой пару могли снять или перевзвести.
	tm, err := e.store.Get(ctx, entry.Subject, entry.Kind)
	if err != nil {
		if !shared.IsNotFound(err) {
			e.log.Error("failed to re-fetch due timer",
				"subject", entry.Subject, "kind", entry.Kind, "error", err)
		}
		return
	}
	if tm.Target.After(now) {
		return
	}

	if late := now.Sub(tm.Target); late > latenessWarnAfter {
		e.log.Warn("timer processed late",
			"subject", entry.Subject, "kind", entry.Kind,
			"late", late.Round(time.Second))
	}

	if e.deliverer.Deliver(ctx, entry.Subject, entry.Kind, renderDue(entry.Kind)) {
		// ClearIfTarget: перевзведённый во время отправки таймер не снимается.
		if err := e.store.ClearIfTarget(ctx, entry.Subject, entry.Kind, tm.Target); err != nil {
			e.log.Error("failed to clear delivered timer",
				"subject", entry.Subject, "kind", entry.Kind, "error", err)
			return
		}
		e.log.Info("reminder delivered", "subject", entry.Subject, "kind", entry.Kind)
	}
}

// PruneCounters удаляет протухшие счётчики неудач. Вызывается по часовому
// крону; на корректность доставки не влияет, только на размер таблицы.
func (e *Engine) PruneCounters(ctx context.Context) error {
	removed, err := e.store.PruneFailures(ctx, e.now())
	if err != nil {
		return shared.Wrap(err, "prune failure counters")
	}
	if removed > 0 {
		e.log.Debug("pruned expired failure counters", "removed", removed)
	}
	return nil
}

// Status возвращает состояние таймера пары, ничего не изменяя. Ready
// означает "дедлайн прошёл, но цикл ещё не обработал" - безобидная гонка,
// разрешается следующим тиком.
func (e *Engine) Status(ctx context.Context, subject string, kind Kind) (TimerStatus, error) {
	tm, err := e.store.Get(ctx, subject, kind)
	if err != nil {
		if shared.IsNotFound(err) {
			return TimerStatus{State: StateNone}, nil
		}
		return TimerStatus{}, err
	}
	remaining := tm.Target.Sub(e.now())
	if remaining <= 0 {
		return TimerStatus{State: StateReady}, nil
	}
	return TimerStatus{State: StatePending, Remaining: remaining}, nil
}

// StatusAll собирает статусы всех видов напоминаний для субъекта.
func (e *Engine) StatusAll(ctx context.Context, subject string) (map[Kind]TimerStatus, error) {
	out := make(map[Kind]TimerStatus, len(Kinds))
	for _, kind := range Kinds {
		st, err := e.Status(ctx, subject, kind)
		if err != nil {
			return nil, err
		}
		out[kind] = st
	}
	return out, nil
}

func renderDue(kind Kind) string {
	switch kind {
	case KindRescue:
		return "⛑ Спасение снова доступно!"
	case KindCardPull:
		return "🃏 Карту снова можно тянуть!"
	default:
		return "⏰ Напоминание!"
	}
}

func renderArmed(kind Kind, in time.Duration) string {
	if in <= 0 {
		return fmt.Sprintf("⏰ Напоминание про %s уже готово", kindTitle(kind))
	}
	return fmt.Sprintf("⏰ Напомню про %s через %s", kindTitle(kind), FormatDuration(in))
}

func kindTitle(kind Kind) string {
	switch kind {
	case KindRescue:
		return "спасение"
	case KindCardPull:
		return "карту"
	default:
		return string(kind)
	}
}

// FormatDuration печатает длительность в человекочитаемом виде: "1ч 23м 45с".
// Нулевые старшие разряды опускаются.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	var b strings.Builder
	if h > 0 {
		fmt.Fprintf(&b, "%dч ", h)
	}
	if m > 0 || h > 0 {
		fmt.Fprintf(&b, "%dм ", m)
	}
	fmt.Fprintf(&b, "%dс", s)
	return b.String()
}
