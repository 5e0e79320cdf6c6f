package telegram

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Update aliases models.Update for brevity.
type Update = models.Update

// HandlerFunc processes a single update.
type HandlerFunc func(ctx context.Context, b *bot.Bot, upd *models.Update)

type dispatched struct {
	ctx context.Context
	bot *bot.Bot
	upd *models.Update
}

// Dispatcher fans updates out to worker goroutines while keeping per-chat
// order: every update of one chat lands on the same worker.
type Dispatcher struct {
	handler HandlerFunc
	log     *slog.Logger
	chans   []chan dispatched
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given worker count.
func NewDispatcher(workers int, h HandlerFunc, log *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		handler: h,
		log:     log.With("component", "dispatcher"),
		chans:   make([]chan dispatched, workers),
	}
	for i := range d.chans {
		d.chans[i] = make(chan dispatched, 64)
		d.wg.Add(1)
		go d.worker(d.chans[i])
	}
	return d
}

// Dispatch hands the update to its chat's worker. A full worker queue drops
// the update rather than blocking the bot's receive loop.
func (d *Dispatcher) Dispatch(ctx context.Context, b *bot.Bot, upd *models.Update) {
	idx := 0
	if id := chatID(upd); id != 0 {
		idx = int(uint64(id) % uint64(len(d.chans)))
	}
	select {
	case d.chans[idx] <- dispatched{ctx: ctx, bot: b, upd: upd}:
	default:
		d.log.Warn("update dropped, worker queue full", "chat_id", chatID(upd))
	}
}

// Close drains the worker queues and waits for handlers to finish.
func (d *Dispatcher) Close() {
	for _, ch := range d.chans {
		close(ch)
	}
	d.wg.Wait()
}

func (d *Dispatcher) worker(in <-chan dispatched) {
	defer d.wg.Done()
	for item := range in {
		d.handler(item.ctx, item.bot, item.upd)
	}
}

func chatID(u *models.Update) int64 {
	if u.Message != nil {
		return u.Message.Chat.ID
	}
	if u.CallbackQuery != nil && u.CallbackQuery.Message.Message != nil {
		return u.CallbackQuery.Message.Message.Chat.ID
	}
	return 0
}
