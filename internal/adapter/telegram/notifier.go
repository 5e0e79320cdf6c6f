package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"

	"remindbot/internal/shared"
	"remindbot/pkg/retry"
)

// Notifier доставляет напоминания в чаты через Bot API. Субъект - строковый
// chat ID; ошибки, по которым повтор бессмыслен (чат удалён, бот заблокирован),
// помечаются постоянными, чтобы доставка не жгла ретраи впустую.
type Notifier struct {
	bot *bot.Bot
	log *slog.Logger
}

func NewNotifier(b *bot.Bot, log *slog.Logger) *Notifier {
	return &Notifier{bot: b, log: log.With("component", "notifier")}
}

// Send отправляет текст субъекту. Таймаут запроса ограничен HTTP-клиентом
// бота, поэтому вызов не может зависнуть.
func (n *Notifier) Send(ctx context.Context, subject string, text string) error {
	chatID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return retry.Permanent(shared.Wrapf(shared.ErrValidation, "bad subject %q", subject))
	}

	_, err = n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err == nil {
		return nil
	}
	if isPermanentSendError(err) {
		return retry.Permanent(shared.Wrap(err, "send message"))
	}
	return shared.Wrap(err, "send message")
}

// isPermanentSendError распознаёт ответы Bot API, при которых чат недостижим
// навсегда. У go-telegram/bot ошибки текстовые, кода нет.
func isPermanentSendError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"chat not found",
		"bot was blocked",
		"user is deactivated",
		"bot was kicked",
		"forbidden",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
