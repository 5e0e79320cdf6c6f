package timers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCooldown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Duration
	}{
		{"colon full", "1:23:45", time.Hour + 23*time.Minute + 45*time.Second},
		{"colon minutes seconds", "23:45", 23*time.Minute + 45*time.Second},
		{"colon seconds only", "45", 45 * time.Minute}, // no colon: bare number is minutes
		{"colon with seconds", "0:45", 45 * time.Second},
		{"tokens long units", "3 hours and 31 minutes", 3*time.Hour + 31*time.Minute},
		{"tokens short units", "2h5m10s", 2*time.Hour + 5*time.Minute + 10*time.Second},
		{"tokens mixed order", "30 sec 5 min", 5*time.Minute + 30*time.Second},
		{"tokens hrs alias", "1hr 30mins", time.Hour + 30*time.Minute},
		{"tokens compact single", "90s", 90 * time.Second},
		{"tokens unknown unit rejected", "10 parsecs", 0},
		{"bare number is minutes", "90", 90 * time.Minute},
		{"empty", "", 0},
		{"garbage", "soon-ish", 0},
		{"negative colon part", "-1:30", 0},
		{"too many colons", "1:2:3:4", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCooldown(tt.in))
		})
	}
}

func TestNormalize(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("epoch hint wins", func(t *testing.T) {
		got, ok := Normalize("ignored", 1700000000, base)
		require.True(t, ok)
		assert.Equal(t, int64(1700000000000), got.UnixMilli())
	})

	t.Run("now keyword", func(t *testing.T) {
		got, ok := Normalize("NOW", 0, base)
		require.True(t, ok)
		assert.Equal(t, base, got)
	})

	t.Run("token duration", func(t *testing.T) {
		got, ok := Normalize("3 hours and 31 minutes", 0, base)
		require.True(t, ok)
		assert.Equal(t, base.Add(12660000*time.Millisecond), got)
	})

	t.Run("colon duration", func(t *testing.T) {
		got, ok := Normalize("1:23:45", 0, base)
		require.True(t, ok)
		assert.Equal(t, base.Add(5025000*time.Millisecond), got)
	})

	t.Run("malformed is not fire-immediately", func(t *testing.T) {
		_, ok := Normalize("whenever", 0, base)
		assert.False(t, ok)
	})
}

func TestParseKind(t *testing.T) {
	for _, alias := range []string{"rescue", "res"} {
		k, ok := ParseKind(alias)
		require.True(t, ok, alias)
		assert.Equal(t, KindRescue, k)
	}
	for _, alias := range []string{"card", "cardpull", "pull"} {
		k, ok := ParseKind(alias)
		require.True(t, ok, alias)
		assert.Equal(t, KindCardPull, k)
	}
	_, ok := ParseKind("raid")
	assert.False(t, ok)
}
