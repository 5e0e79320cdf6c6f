package telegram

import (
	"strconv"
	"strings"

	"remindbot/internal/timers"
)

// Request - одна распознанная заявка на напоминание из текста чата.
type Request struct {
	Kind      timers.Kind
	Spec      string // сырой текст длительности ("1:23:45", "3 hours")
	EpochHint int64  // абсолютная метка unix-секунд ("@1700000000"), 0 если нет
}

// ParseRequests извлекает заявки из свободного текста. Сегменты разделяются
// запятыми, точками с запятой и переносами строк; сегмент начинается с
// алиаса вида напоминания, дальше идёт длительность или эпоха. Всё
// нераспознанное молча пропускается: текст чата ботам не принадлежит.
func ParseRequests(text string) []Request {
	var out []Request
	for _, seg := range splitSegments(text) {
		fields := strings.Fields(seg)
		if len(fields) == 0 {
			continue
		}
		kind, ok := timers.ParseKind(strings.ToLower(fields[0]))
		if !ok {
			continue
		}

		rest := strings.TrimSpace(strings.TrimPrefix(seg, fields[0]))
		req := Request{Kind: kind, Spec: rest}
		if strings.HasPrefix(rest, "@") {
			if epoch, err := strconv.ParseInt(rest[1:], 10, 64); err == nil && epoch > 0 {
				req.EpochHint = epoch
				req.Spec = ""
			}
		}
		out = append(out, req)
	}
	return out
}

func splitSegments(text string) []string {
	segs := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	for i, s := range segs {
		segs[i] = strings.TrimSpace(s)
	}
	return segs
}
