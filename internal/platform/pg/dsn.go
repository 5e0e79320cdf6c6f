package pg

import (
	"fmt"
	"net/url"
)

// ValidateDSN проверяет, что строка подключения разбирается и адресует
// PostgreSQL. Вызывается на старте, чтобы упасть до создания пула.
func ValidateDSN(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("DSN host is required")
	}
	return nil
}

// RedactDSN возвращает строку подключения без пароля, пригодную для логов.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "<unparsable dsn>"
	}
	if u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}
