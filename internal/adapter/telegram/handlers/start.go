package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const startText = `Я напоминаю о кулдаунах.

Напишите вид и длительность:
  rescue 1:23:45
  card 3 hours
  rescue 10m, pull 25 minutes
  rescue @1700000000 (unix-секунды)

/status - когда что будет готово`

// start отвечает на /start и /help краткой справкой.
func (h *Handlers) start(ctx context.Context, b *bot.Bot, msg *models.Message) {
	h.reply(ctx, b, msg.Chat.ID, startText)
}
