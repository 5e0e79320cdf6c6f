package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"remindbot/internal/timers"
)

func TestParseRequests(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []Request
	}{
		{
			name: "колонная форма",
			text: "rescue 1:23:45",
			want: []Request{{Kind: timers.KindRescue, Spec: "1:23:45"}},
		},
		{
			name: "токенная форма с алиасом",
			text: "card 3 hours and 31 minutes",
			want: []Request{{Kind: timers.KindCardPull, Spec: "3 hours and 31 minutes"}},
		},
		{
			name: "несколько заявок через запятую",
			text: "rescue 10m, pull 1:00:00",
			want: []Request{
				{Kind: timers.KindRescue, Spec: "10m"},
				{Kind: timers.KindCardPull, Spec: "1:00:00"},
			},
		},
		{
			name: "эпоха",
			text: "rescue @1700000000",
			want: []Request{{Kind: timers.KindRescue, EpochHint: 1700000000}},
		},
		{
			name: "регистр алиаса не важен",
			text: "Rescue now",
			want: []Request{{Kind: timers.KindRescue, Spec: "now"}},
		},
		{
			name: "чужой текст пропускается",
			text: "привет, как дела?",
			want: nil,
		},
		{
			name: "битая эпоха остаётся сырым текстом",
			text: "rescue @abc",
			want: []Request{{Kind: timers.KindRescue, Spec: "@abc"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseRequests(tc.text))
		})
	}
}
