package handlers

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"remindbot/internal/adapter/telegram"
	"remindbot/internal/timers"
)

// remind сканирует свободный текст на заявки и взводит таймеры. Подтверждение
// взвода шлёт сам движок, сюда попадают только отказы нормализации.
func (h *Handlers) remind(ctx context.Context, b *bot.Bot, msg *models.Message) {
	subject := strconv.FormatInt(msg.Chat.ID, 10)

	for _, req := range telegram.ParseRequests(msg.Text) {
		target, ok := timers.Normalize(req.Spec, req.EpochHint, h.now())
		if !ok {
			h.log.Debug("unparsable duration",
				"chat_id", msg.Chat.ID, "kind", req.Kind, "spec", req.Spec)
			h.reply(ctx, b, msg.Chat.ID, "Не понял длительность: "+req.Spec)
			continue
		}

		if err := h.engine.Arm(ctx, subject, req.Kind, target, true); err != nil {
			h.log.Error("failed to arm timer",
				"chat_id", msg.Chat.ID, "kind", req.Kind, "error", err)
			h.reply(ctx, b, msg.Chat.ID, "Не получилось завести напоминание, попробуйте ещё раз")
		}
	}
}
