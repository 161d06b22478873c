package report

import (
	"sort"
	"time"

	"github.com/xaenox/chat-report-bot/internal/models"
)

// DetectStale flags chats whose latest message is older than threshold.
// Chats with no messages in the input never appear.
func DetectStale(messages []models.Message, threshold time.Time) []models.StaleChat {
	latest := make(map[int64]models.Message)
	for _, msg := range messages {
		cur, ok := latest[msg.ChatID]
		if !ok || msg.Timestamp.After(cur.Timestamp) || (msg.Timestamp.Equal(cur.Timestamp) && msg.ID > cur.ID) {
			latest[msg.ChatID] = msg
		}
	}

	seen := make(map[models.StaleChat]struct{})
	var stale []models.StaleChat
	for _, msg := range latest {
		if !msg.Timestamp.Before(threshold) {
			continue
		}
		chat := models.StaleChat{ChatTitle: msg.ChatTitle, LastSender: msg.UserName}
		if _, dup := seen[chat]; dup {
			continue
		}
		seen[chat] = struct{}{}
		stale = append(stale, chat)
	}

	sort.Slice(stale, func(i, j int) bool {
		if stale[i].ChatTitle != stale[j].ChatTitle {
			return stale[i].ChatTitle < stale[j].ChatTitle
		}
		return stale[i].LastSender < stale[j].LastSender
	})

	return stale
}
