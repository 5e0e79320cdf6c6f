package timers

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// tokenRe matches "<number><unit>" fragments. The unit letters are validated
// against the alias set separately: RE2 has no lookahead, and a `\b` after the
// unit cannot match inside compact forms like "2h5m10s" where a digit follows
// the unit letter directly.
var tokenRe = regexp.MustCompile(`(\d+)\s*([a-z]+)`)

// Normalize converts a free-form cooldown string plus an optional absolute
// epoch hint (unix seconds) into one absolute target instant.
//
// Precedence: a non-zero epoch hint wins outright; "now" yields the current
// instant; otherwise the string is parsed as a duration and added to now.
// Malformed input yields ok=false and callers must treat it as a no-op,
// never as "fire immediately".
func Normalize(raw string, epochHint int64, now time.Time) (time.Time, bool) {
	if epochHint != 0 {
		return time.Unix(epochHint, 0), true
	}
	if strings.EqualFold(strings.TrimSpace(raw), "now") {
		return now, true
	}
	d := ParseCooldown(raw)
	if d <= 0 {
		return time.Time{}, false
	}
	return now.Add(d), true
}

// ParseCooldown parses a free-form cooldown string into a duration.
//
// Accepted forms:
//   - colon-delimited "H:MM:SS", "MM:SS" or "SS", read right to left;
//   - repeated "<number><unit>" tokens (hour/hr/h, minute/min/m,
//     second/sec/s) in any order, summed; filler words are ignored;
//   - a bare number, interpreted as minutes.
//
// Anything else parses to zero.
func ParseCooldown(raw string) time.Duration {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}

	if strings.Contains(s, ":") {
		return parseColonForm(s)
	}

	if d := parseTokenForm(s); d > 0 {
		return d
	}

	// Bare number fallback: minutes.
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Minute
	}
	return 0
}

// parseColonForm reads "H:MM:SS" style strings right to left as seconds,
// minutes, hours. Missing components default to zero.
func parseColonForm(s string) time.Duration {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}
	units := []time.Duration{time.Second, time.Minute, time.Hour}
	var total time.Duration
	for i := 0; i < len(parts); i++ {
		p := strings.TrimSpace(parts[len(parts)-1-i])
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total += time.Duration(n) * units[i]
	}
	return total
}

func parseTokenForm(s string) time.Duration {
	var total time.Duration
	for _, m := range tokenRe.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		unit, ok := unitOf(m[2])
		if !ok {
			// Число с неизвестной единицей - мусор, а не пропуск.
			return 0
		}
		total += time.Duration(n) * unit
	}
	return total
}

func unitOf(alias string) (time.Duration, bool) {
	switch alias {
	case "h", "hr", "hrs", "hour", "hours":
		return time.Hour, true
	case "m", "min", "mins", "minute", "minutes":
		return time.Minute, true
	case "s", "sec", "secs", "second", "seconds":
		return time.Second, true
	}
	return 0, false
}
