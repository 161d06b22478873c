// Package report turns a window of recorded messages into the activity report
// delivered to the administrator.
package report

import (
	"sort"
	"time"

	"github.com/xaenox/chat-report-bot/internal/models"
)

type activityKey struct {
	chatTitle string
	userName  string
	userID    int64
}

// Aggregate groups messages by chat title, user name and user ID. Rows are
// ordered by chat title so that rows of one chat are contiguous, then by user
// name and user ID.
func Aggregate(messages []models.Message) []models.UserActivity {
	index := make(map[activityKey]int)
	var rows []models.UserActivity

	for _, msg := range messages {
		key := activityKey{chatTitle: msg.ChatTitle, userName: msg.UserName, userID: msg.UserID}
		i, ok := index[key]
		if !ok {
			index[key] = len(rows)
			rows = append(rows, models.UserActivity{
				ChatTitle:    msg.ChatTitle,
				UserName:     msg.UserName,
				UserID:       msg.UserID,
				MessageCount: 1,
				FirstAt:      msg.Timestamp,
				LastAt:       msg.Timestamp,
			})
			continue
		}

		row := &rows[i]
		row.MessageCount++
		if msg.Timestamp.Before(row.FirstAt) {
			row.FirstAt = msg.Timestamp
		}
		if msg.Timestamp.After(row.LastAt) {
			row.LastAt = msg.Timestamp
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ChatTitle != b.ChatTitle {
			return a.ChatTitle < b.ChatTitle
		}
		if a.UserName != b.UserName {
			return a.UserName < b.UserName
		}
		return a.UserID < b.UserID
	})

	return rows
}

// ResponseLatencies compares every message with the previous message of the
// same chat. When the authors differ and 0 < gap < maxGap, the gap in seconds
// is a sample for the author of the later message.
func ResponseLatencies(messages []models.Message, maxGap time.Duration) map[int64][]float64 {
	ordered := sortByChatAndTime(messages)

	type lastSeen struct {
		userID int64
		at     time.Time
	}
	last := make(map[int64]lastSeen)
	samples := make(map[int64][]float64)

	for _, msg := range ordered {
		prev, ok := last[msg.ChatID]
		last[msg.ChatID] = lastSeen{userID: msg.UserID, at: msg.Timestamp}
		if !ok || prev.userID == msg.UserID {
			continue
		}

		gap := msg.Timestamp.Sub(prev.at)
		if gap > 0 && gap < maxGap {
			samples[msg.UserID] = append(samples[msg.UserID], gap.Seconds())
		}
	}

	return samples
}

// sortByChatAndTime returns a copy ordered by chat ID, timestamp and ID.
func sortByChatAndTime(messages []models.Message) []models.Message {
	ordered := make([]models.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.ChatID != b.ChatID {
			return a.ChatID < b.ChatID
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return ordered
}
