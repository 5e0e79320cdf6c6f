// Package sqlite предоставляет инфраструктурные компоненты для работы с SQLite.
//
// Основные возможности:
// - Инициализация БД с оптимизированными настройками (WAL, busy_timeout)
// - Управление транзакциями через TxRunner с IMMEDIATE блокировками
// - Миграции через golang-migrate
// - Тестовые хелперы (in-memory и файловые БД)
//
// Хранилище таймеров требует атомарного обновления записи и индекса,
// поэтому все мутации выполняются через WithinTx:
//
//	runner := sqlite.NewTxRunner(db)
//	err := runner.WithinTx(ctx, func(ctx context.Context) error {
//		q := runner.GetQuerier(ctx)
//		if _, err := q.ExecContext(ctx, "DELETE FROM timers WHERE ..."); err != nil {
//			return err
//		}
//		_, err := q.ExecContext(ctx, "INSERT INTO timers ...")
//		return err
//	})
//
// IMMEDIATE режим захватывает блокировку записи в начале транзакции,
// что убирает SQLITE_BUSY на коммите при конкурентной записи.
package sqlite
