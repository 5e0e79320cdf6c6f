package sqlite

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMigrateURL(t *testing.T) {
	url, err := BuildMigrateURL("data/app.db")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "sqlite://"), "URL должен начинаться с sqlite://")
	assert.True(t, strings.HasSuffix(url, "/data/app.db"))

	if runtime.GOOS != "windows" {
		assert.True(t, strings.HasPrefix(url, "sqlite:///"), "на Unix путь абсолютный")
	}
}

func TestApplyMigrations(t *testing.T) {
	tdb := NewTestDBFile(t)

	// Миграции проекта лежат в migrations/sqlite относительно корня модуля
	tdb.ApplyTestMigrations(t, "file://../../../migrations/sqlite")

	var name string
	err := tdb.QueryRow(t, "SELECT name FROM sqlite_master WHERE type='table' AND name='timers'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "timers", name)

	err = tdb.QueryRow(t, "SELECT name FROM sqlite_master WHERE type='table' AND name='delivery_failures'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "delivery_failures", name)

	// Повторное применение не должно падать
	tdb.ApplyTestMigrations(t, "file://../../../migrations/sqlite")
}
