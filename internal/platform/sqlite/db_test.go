package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemoryDB(t *testing.T) {
	db, err := NewInMemoryDB(context.Background())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)")
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO t (v) VALUES (?)", "hello")
	require.NoError(t, err)

	var v string
	err = db.QueryRow("SELECT v FROM t WHERE id = 1").Scan(&v)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		opts DBOptions
		want string
	}{
		{"no params", "app.db", DBOptions{}, "app.db"},
		{"busy timeout", "app.db", DBOptions{BusyTimeout: 5000000000}, "app.db?_busy_timeout=5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.path, tt.opts))
		})
	}
}

func TestPragmaSettings(t *testing.T) {
	tdb := NewTestDBFile(t)

	var journalMode string
	err := tdb.DB.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	require.NoError(t, err)
	assert.Equal(t, "wal", journalMode)

	var fk int
	err = tdb.DB.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	require.NoError(t, err)
	assert.Equal(t, 1, fk)
}
