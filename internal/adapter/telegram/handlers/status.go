package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"remindbot/internal/timers"
)

var kindLabels = map[timers.Kind]string{
	timers.KindRescue:   "Спасение",
	timers.KindCardPull: "Карта",
}

// status отвечает сводкой по всем видам напоминаний чата. Только чтение.
func (h *Handlers) status(ctx context.Context, b *bot.Bot, msg *models.Message) {
	subject := strconv.FormatInt(msg.Chat.ID, 10)

	all, err := h.engine.StatusAll(ctx, subject)
	if err != nil {
		h.log.Error("failed to read status", "chat_id", msg.Chat.ID, "error", err)
		h.reply(ctx, b, msg.Chat.ID, "Не получилось прочитать статус, попробуйте ещё раз")
		return
	}

	var sb strings.Builder
	for _, kind := range timers.Kinds {
		sb.WriteString(kindLabels[kind])
		sb.WriteString(": ")
		sb.WriteString(renderStatus(all[kind]))
		sb.WriteString("\n")
	}
	h.reply(ctx, b, msg.Chat.ID, strings.TrimRight(sb.String(), "\n"))
}

func renderStatus(st timers.TimerStatus) string {
	switch st.State {
	case timers.StateReady:
		return "готово"
	case timers.StatePending:
		return "через " + timers.FormatDuration(st.Remaining)
	default:
		return "не взведено"
	}
}
