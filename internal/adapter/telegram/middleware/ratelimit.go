package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"remindbot/internal/adapter/telegram"
)

// RateLimiter ограничивает частоту заявок на чат: не чаще одной за интервал.
type RateLimiter struct {
	mu   sync.Mutex
	last map[int64]time.Time
	rate time.Duration
}

// NewRateLimiter создаёт лимитер с заданным минимальным интервалом.
func NewRateLimiter(rate time.Duration) *RateLimiter {
	return &RateLimiter{last: make(map[int64]time.Time), rate: rate}
}

// Allow возвращает false, если чат обращается чаще лимита.
func (r *RateLimiter) Allow(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if t, ok := r.last[chatID]; ok && now.Sub(t) < r.rate {
		return false
	}
	if len(r.last) > 10000 {
		// Редкая уборка: чаты, давно молчащие, из карты выпадают.
		for id, t := range r.last {
			if now.Sub(t) >= r.rate {
				delete(r.last, id)
			}
		}
	}
	r.last[chatID] = now
	return true
}

// Middleware отвечает отказом вместо обработки при превышении лимита.
func (r *RateLimiter) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, upd *models.Update) {
		msg := upd.Message
		if msg != nil && !r.Allow(msg.Chat.ID) {
			if b != nil {
				_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: msg.Chat.ID,
					Text:   "Слишком часто, подождите немного",
				})
			}
			return
		}
		next(ctx, b, upd)
	}
}
