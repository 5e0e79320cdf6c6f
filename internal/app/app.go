// Package app собирает компоненты бота и управляет их жизненным циклом.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"remindbot/internal/adapter/scheduler"
	"remindbot/internal/adapter/telegram"
	"remindbot/internal/adapter/telegram/handlers"
	"remindbot/internal/adapter/telegram/middleware"
	"remindbot/internal/config"
	"remindbot/internal/platform/httpclient"
	"remindbot/internal/platform/logger"
	"remindbot/internal/platform/pg"
	"remindbot/internal/platform/sqlite"
	"remindbot/internal/timers"
	"remindbot/pkg/retry"
)

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "remindbot",
	})
	return &App{cfg: cfg, log: log}, nil
}

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.log.Info("starting", "storage", a.cfg.Storage.Backend)
	defer func() { _ = logger.Close(a.log) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	client := httpclient.New(httpclient.WithLogger(a.log))

	var disp *telegram.Dispatcher
	opts := []bot.Option{
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, upd *models.Update) {
			disp.Dispatch(ctx, b, upd)
		}),
		bot.WithAllowedUpdates([]string{"message"}),
		bot.WithHTTPClient(time.Minute, client),
	}
	if a.cfg.Telegram.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(a.cfg.Telegram.WebhookSecret))
	}

	b, err := bot.New(a.cfg.Telegram.Token, opts...)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	notifier := telegram.NewNotifier(b, a.log)
	deliverer, err := timers.NewDeliverer(store, notifier, retry.DefaultPolicy(), a.log)
	if err != nil {
		return err
	}
	eng := timers.NewEngine(store, deliverer, notifier, a.log)

	handler := middleware.Chain(
		handlers.New(eng, a.log).Handle,
		middleware.NewRateLimiter(time.Second).Middleware,
		middleware.NewACL(middleware.ParseAllowedIDs(a.cfg.Telegram.AllowedChats)).Middleware,
	)
	disp = telegram.NewDispatcher(8, handler, a.log)
	defer disp.Close()

	// Восстановительный проход до первого тика: доставить то, что просрочилось
	// за время простоя процесса.
	if err := eng.ProcessDue(ctx); err != nil {
		a.log.Error("recovery pass failed", "error", err)
	}

	sched := scheduler.New(ctx, a.log)
	sched.RunEvery(timers.PollInterval, "due-scan", timers.PollInterval, eng.ProcessDue)
	if err := sched.RunCron("@hourly", "counter-prune", time.Minute, eng.PruneCounters); err != nil {
		return err
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = sched.StopContext(stopCtx)
	}()

	srv := a.startHTTP(eng, b)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if a.cfg.Telegram.WebhookURL != "" {
		_, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:         a.cfg.Telegram.WebhookURL,
			SecretToken: a.cfg.Telegram.WebhookSecret,
		})
		if err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		go b.StartWebhook(ctx)
	} else {
		go b.Start(ctx)
	}

	<-ctx.Done()
	a.log.Info("shutting down")
	return nil
}

// openStore открывает выбранный бэкенд хранилища и применяет его миграции.
func (a *App) openStore(ctx context.Context) (timers.Store, func(), error) {
	if a.cfg.Storage.Backend == "postgres" {
		dsn := a.cfg.Storage.PostgresDSN
		if err := pg.ValidateDSN(dsn); err != nil {
			return nil, nil, err
		}
		if err := pg.ApplyMigrations(dsn, "file://migrations/pg"); err != nil {
			return nil, nil, err
		}
		pool, err := pg.NewPool(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres %s: %w", pg.RedactDSN(dsn), err)
		}
		a.log.Info("postgres store ready", "dsn", pg.RedactDSN(dsn))
		return timers.NewPGStore(pg.NewTxRunner(pool), a.log), pool.Close, nil
	}

	db, err := sqlite.NewDB(ctx, a.cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := sqlite.ApplyMigrations(a.cfg.Storage.SQLitePath, "file://migrations/sqlite"); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	a.log.Info("sqlite store ready", "path", a.cfg.Storage.SQLitePath)
	return timers.NewSQLiteStore(sqlite.NewTxRunner(db), a.log), func() { _ = db.Close() }, nil
}

// startHTTP поднимает HTTP-сервер: вебхук бота (если настроен) и read-only
// проекция статусов. Проекция ходит только через Status Reader.
func (a *App) startHTTP(eng *timers.Engine, b *bot.Bot) *http.Server {
	if a.cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status/:subject", func(c *gin.Context) {
		all, err := eng.StatusAll(c.Request.Context(), c.Param("subject"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
			return
		}
		out := gin.H{}
		for kind, st := range all {
			entry := gin.H{"state": st.State.String()}
			if st.State == timers.StatePending {
				entry["remaining_seconds"] = int64(st.Remaining.Seconds())
			}
			out[string(kind)] = entry
		}
		c.JSON(http.StatusOK, out)
	})

	if a.cfg.Telegram.WebhookURL != "" {
		r.POST("/telegram/webhook", gin.WrapH(b.WebhookHandler()))
	}

	srv := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("http server", "error", err)
		}
	}()
	return srv
}
