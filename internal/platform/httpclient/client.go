// Package httpclient предоставляет исходящий HTTP-клиент с жёсткими
// таймаутами, журналированием и редакцией токена бота в URL. Все сетевые
// вызовы процесса идут через него, поэтому ни один send не может зависнуть.
package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	stdhttp "net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// Client оборачивает http.Client. Повторы здесь только для идемпотентных
// методов: повтор POST к Bot API означал бы дубликат сообщения, ретраями
// отправки занимается слой доставки.
type Client struct {
	hc          *stdhttp.Client
	log         *slog.Logger
	retries     int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = t }
}

// WithLogger sets logger used by client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l.With("component", "httpclient")
		}
	}
}

// WithRetries enables idempotent-method retries with exponential backoff.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		if backoff > 0 {
			c.baseBackoff = backoff
		}
	}
}

// WithTransport sets custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// New creates configured Client.
func New(opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConnsPerHost = 10
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 15 * time.Second

	c := &Client{
		hc: &stdhttp.Client{
			Timeout:   30 * time.Second,
			Transport: tr,
		},
		log:         slog.Default(),
		baseBackoff: 200 * time.Millisecond,
		maxBackoff:  5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do выполняет запрос, повторяя идемпотентные методы при сетевых сбоях.
// Сигнатура совместима с HttpClient из go-telegram/bot.
func (c *Client) Do(req *stdhttp.Request) (*stdhttp.Response, error) {
	attempts := 1
	if c.retries > 0 && idempotent(req.Method) {
		attempts += c.retries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(req.Context(), c.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err == nil {
			c.log.Debug("http request",
				"method", req.Method, "url", RedactURL(req.URL),
				"status", resp.StatusCode, "duration", time.Since(start))
			return resp, nil
		}

		lastErr = err
		if !isRetryableError(err) || attempt == attempts-1 {
			break
		}
		c.log.Warn("http request failed, retrying",
			"method", req.Method, "url", RedactURL(req.URL),
			"attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// Std возвращает завёрнутый *http.Client для библиотек, которым нужен
// именно стандартный тип.
func (c *Client) Std() *stdhttp.Client {
	return c.hc
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseBackoff << (attempt - 1)
	if c.maxBackoff > 0 && d > c.maxBackoff {
		d = c.maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func idempotent(method string) bool {
	switch method {
	case stdhttp.MethodGet, stdhttp.MethodHead, stdhttp.MethodOptions:
		return true
	}
	return false
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// RedactURL прячет токен бота в путях Bot API вида /bot<token>/method.
func RedactURL(u *url.URL) string {
	clone := *u
	if i := strings.Index(clone.Path, "/bot"); i >= 0 {
		rest := clone.Path[i+len("/bot"):]
		if j := strings.Index(rest, "/"); j >= 0 {
			clone.Path = clone.Path[:i] + "/bot***" + rest[j:]
		} else {
			clone.Path = clone.Path[:i] + "/bot***"
		}
	}
	return clone.String()
}
