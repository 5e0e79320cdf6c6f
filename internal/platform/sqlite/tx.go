package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// txKey используется как ключ для хранения транзакции в context.Context
type txKey struct{}

// Querier объединяет методы выполнения запросов, общие для БД и транзакции.
// Позволяет хранилищу работать с одним интерфейсом независимо от того,
// выполняется ли запрос в транзакции или через основное подключение.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Убедимся на этапе компиляции, что типы реализуют интерфейс
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
	_ Querier = (*manualTx)(nil)
)

// RetryConfig содержит настройки для повторных попыток при SQLITE_BUSY.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// TxRunner предоставляет возможность выполнения кода внутри транзакции.
// Реализует паттерн "функция обратного вызова" для гарантированного
// коммита или отката транзакции.
type TxRunner struct {
	DB          *sql.DB
	TxLockMode  TxLockMode
	RetryConfig RetryConfig
}

// NewTxRunner создает новый TxRunner с настройками по умолчанию.
func NewTxRunner(db *sql.DB) *TxRunner {
	return NewTxRunnerWithOptions(db, DefaultDBOptions())
}

// NewTxRunnerWithOptions создает новый TxRunner с указанными опциями.
func NewTxRunnerWithOptions(db *sql.DB, opts DBOptions) *TxRunner {
	return &TxRunner{
		DB:         db,
		TxLockMode: opts.TxLockMode,
		RetryConfig: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Multiplier:   2.0,
		},
	}
}

// WithinTx выполняет функцию fn внутри транзакции.
// Если fn возвращает ошибку, транзакция откатывается, иначе коммитится.
// Транзакция доступна внутри fn через GetQuerier(ctx).
// Повторяет попытку при SQLITE_BUSY.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := r.RetryConfig.InitialDelay

	for attempt := 1; ; attempt++ {
		err := r.executeTx(ctx, fn)
		if err == nil || attempt == r.RetryConfig.MaxAttempts || !isBusyError(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * r.RetryConfig.Multiplier)
			if delay > r.RetryConfig.MaxDelay {
				delay = r.RetryConfig.MaxDelay
			}
		}
	}
}

// GetTxQuerier извлекает транзакцию из контекста как Querier.
func GetTxQuerier(ctx context.Context) (Querier, bool) {
	if querier, ok := ctx.Value(txKey{}).(Querier); ok {
		return querier, true
	}
	return nil, false
}

// GetQuerier возвращает объект для выполнения запросов: активную транзакцию
// из контекста либо основное подключение к БД.
func (r *TxRunner) GetQuerier(ctx context.Context) Querier {
	if querier, ok := GetTxQuerier(ctx); ok {
		return querier
	}
	return r.DB
}

// executeTx выполняет одну попытку транзакции.
func (r *TxRunner) executeTx(ctx context.Context, fn func(context.Context) error) error {
	if _, exists := GetTxQuerier(ctx); exists {
		return fmt.Errorf("nested transactions are not supported by SQLite")
	}

	// Для ненулевого режима блокировки нужен ручной BEGIN
	if r.TxLockMode != "" && r.TxLockMode != TxLockDeferred {
		return r.executeTxWithLockMode(ctx, fn)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, txKey{}, tx)
	if err := fn(ctx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// executeTxWithLockMode выполняет транзакцию с указанным режимом блокировки.
// В SQLite нельзя получить *sql.Tx после ручного BEGIN, поэтому
// используется wrapper поверх основного подключения.
func (r *TxRunner) executeTxWithLockMode(ctx context.Context, fn func(context.Context) error) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("BEGIN %s", r.TxLockMode)); err != nil {
		return err
	}

	ctx = context.WithValue(ctx, txKey{}, &manualTx{conn: conn})
	if err := fn(ctx); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}

	_, err = conn.ExecContext(ctx, "COMMIT")
	return err
}

// manualTx представляет ручную транзакцию для поддержки IMMEDIATE режима.
// Все запросы идут через одно соединение, удерживающее блокировку.
type manualTx struct {
	conn *sql.Conn
}

func (m *manualTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.conn.ExecContext(ctx, query, args...)
}

func (m *manualTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return m.conn.QueryContext(ctx, query, args...)
}

func (m *manualTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return m.conn.QueryRowContext(ctx, query, args...)
}

// isBusyError проверяет, является ли ошибка SQLITE_BUSY.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database table is locked")
}
