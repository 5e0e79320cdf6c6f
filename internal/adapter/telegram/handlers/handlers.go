// Package handlers отвечает на команды и свободный текст чатов.
package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"remindbot/internal/timers"
)

// Engine - та часть движка напоминаний, которая нужна хендлерам.
type Engine interface {
	Arm(ctx context.Context, subject string, kind timers.Kind, target time.Time, notifyOnSet bool) error
	StatusAll(ctx context.Context, subject string) (map[timers.Kind]timers.TimerStatus, error)
}

// Handlers маршрутизирует обновления к обработчикам команд.
type Handlers struct {
	engine Engine
	log    *slog.Logger

	// Подменяется в тестах.
	now func() time.Time
}

func New(engine Engine, log *slog.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		log:    log.With("component", "handlers"),
		now:    time.Now,
	}
}

// Handle разбирает одно обновление: команды обрабатываются явно, любой другой
// текст сканируется на заявки напоминаний.
func (h *Handlers) Handle(ctx context.Context, b *bot.Bot, upd *models.Update) {
	msg := upd.Message
	if msg == nil || msg.Text == "" {
		return
	}

	if strings.HasPrefix(msg.Text, "/") {
		cmd := strings.TrimPrefix(strings.SplitN(msg.Text, " ", 2)[0], "/")
		cmd = strings.SplitN(cmd, "@", 2)[0]
		switch cmd {
		case "start", "help":
			h.start(ctx, b, msg)
		case "status":
			h.status(ctx, b, msg)
		}
		return
	}

	h.remind(ctx, b, msg)
}

func (h *Handlers) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.log.Warn("failed to send reply", "chat_id", chatID, "error", err)
	}
}
