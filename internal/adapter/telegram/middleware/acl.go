package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"remindbot/internal/adapter/telegram"
)

// ACL проверяет доступ по списку разрешённых чатов. Пустой список означает
// открытый доступ.
type ACL struct{ allowed map[int64]struct{} }

// NewACL создаёт ACL по списку chat ID.
func NewACL(ids []int64) *ACL {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &ACL{allowed: m}
}

// IsAllowed сообщает, разрешён ли чат.
func (a *ACL) IsAllowed(chatID int64) bool {
	if len(a.allowed) == 0 {
		return true
	}
	_, ok := a.allowed[chatID]
	return ok
}

// Middleware молча отбрасывает обновления из неразрешённых чатов: в чужом
// чате бот не отвечает даже отказом.
func (a *ACL) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, upd *models.Update) {
		if msg := upd.Message; msg != nil && !a.IsAllowed(msg.Chat.ID) {
			return
		}
		next(ctx, b, upd)
	}
}

// ParseAllowedIDs парсит список ID из строки (разделители: запятая/переносы).
// Нечисловые элементы пропускаются.
func ParseAllowedIDs(s string) []int64 {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\t' || r == ' '
	})
	var out []int64
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
