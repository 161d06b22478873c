package report

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/xaenox/chat-report-bot/internal/models"
)

// Input is everything Format needs. It carries no clock, so formatting the
// same Input always gives the same text.
type Input struct {
	Activities []models.UserActivity
	Latencies  map[int64][]float64
	Stale      []models.StaleChat
	// Tones is keyed by user ID. Users without an entry get no tone suffix.
	Tones map[int64]*models.ToneBreakdown
}

const (
	reportHeader = "📊 <b>Отчёт за последние 24 часа</b>"
	staleHeader  = "\n🔕 <b>Чаты без ответа более 6 часов:</b>"
)

// Format renders the report as Telegram HTML. Activities must already be
// grouped by chat title, as Aggregate returns them.
func Format(in Input) string {
	lines := []string{reportHeader}

	currentChat := ""
	for i, row := range in.Activities {
		if i == 0 || row.ChatTitle != currentChat {
			lines = append(lines, fmt.Sprintf("\n<b>💬 Чат: %s</b>", html.EscapeString(row.ChatTitle)))
			currentChat = row.ChatTitle
		}

		lines = append(lines, fmt.Sprintf("👤 <b>%s</b> — сообщений: %d, период: %s%s%s",
			html.EscapeString(row.UserName),
			row.MessageCount,
			formatDuration(row.ActiveDuration()),
			latencySuffix(in.Latencies[row.UserID]),
			toneSuffix(in.Tones[row.UserID]),
		))
	}

	if len(in.Stale) > 0 {
		lines = append(lines, staleHeader)
		for _, chat := range in.Stale {
			lines = append(lines, fmt.Sprintf("– %s (посл. сообщение от %s)",
				html.EscapeString(chat.ChatTitle), html.EscapeString(chat.LastSender)))
		}
	}

	return strings.Join(lines, "\n")
}

func latencySuffix(samples []float64) string {
	if len(samples) == 0 {
		return ""
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	avg := sum / float64(len(samples))
	minutes := int(avg / 60)
	seconds := int(avg - float64(minutes)*60)
	return fmt.Sprintf(" (ср. ответ: %d мин %d сек)", minutes, seconds)
}

func toneSuffix(tone *models.ToneBreakdown) string {
	if tone == nil {
		return ""
	}
	return fmt.Sprintf("\nGPT-анализ: вежл — %d, нейтр — %d, груб — %d", tone.Polite, tone.Neutral, tone.Rude)
}

// formatDuration prints H:MM:SS, prefixed with whole days when there are any.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	clock := fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	switch {
	case days == 1:
		return "1 day, " + clock
	case days > 1:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
	return clock
}
