package report

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/chat-report-bot/internal/models"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type msgBuilder struct {
	nextID int64
	msgs   []models.Message
}

func (b *msgBuilder) add(chatID int64, chatTitle string, userID int64, userName string, at time.Time, text string) *msgBuilder {
	b.nextID++
	b.msgs = append(b.msgs, models.Message{
		ID:        b.nextID,
		ChatID:    chatID,
		ChatTitle: chatTitle,
		UserID:    userID,
		UserName:  userName,
		Text:      text,
		Timestamp: at,
	})
	return b
}

func TestAggregateGroupsAndOrders(t *testing.T) {
	b := &msgBuilder{}
	b.add(2, "Zeta", 1, "Alice", t0, "z1").
		add(1, "Alpha", 2, "Bob", t0.Add(time.Minute), "a1").
		add(1, "Alpha", 1, "Alice", t0.Add(2*time.Minute), "a2").
		add(2, "Zeta", 1, "Alice", t0.Add(30*time.Minute), "z2").
		add(1, "Alpha", 2, "Bob", t0.Add(3*time.Minute), "a3")

	rows := Aggregate(b.msgs)
	require.Len(t, rows, 3)

	assert.Equal(t, models.UserActivity{
		ChatTitle: "Alpha", UserName: "Alice", UserID: 1, MessageCount: 1,
		FirstAt: t0.Add(2 * time.Minute), LastAt: t0.Add(2 * time.Minute),
	}, rows[0])
	assert.Equal(t, models.UserActivity{
		ChatTitle: "Alpha", UserName: "Bob", UserID: 2, MessageCount: 2,
		FirstAt: t0.Add(time.Minute), LastAt: t0.Add(3 * time.Minute),
	}, rows[1])
	assert.Equal(t, models.UserActivity{
		ChatTitle: "Zeta", UserName: "Alice", UserID: 1, MessageCount: 2,
		FirstAt: t0, LastAt: t0.Add(30 * time.Minute),
	}, rows[2])
}

func TestAggregateSeparatesRenamedUser(t *testing.T) {
	b := &msgBuilder{}
	b.add(1, "Team", 1, "Alice", t0, "x").
		add(1, "Team", 1, "Alice (@alice)", t0.Add(time.Minute), "y")

	rows := Aggregate(b.msgs)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[0].UserName)
	assert.Equal(t, "Alice (@alice)", rows[1].UserName)
}

func TestAggregateMatchesBruteForceCount(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b := &msgBuilder{}
	for i := 0; i < 500; i++ {
		chat := rng.Int63n(4)
		user := rng.Int63n(6)
		b.add(chat, fmt.Sprintf("Chat %d", chat), user, fmt.Sprintf("User %d", user),
			t0.Add(time.Duration(rng.Intn(86400))*time.Second), "m")
	}

	want := make(map[activityKey]int)
	for _, m := range b.msgs {
		want[activityKey{m.ChatTitle, m.UserName, m.UserID}]++
	}

	rows := Aggregate(b.msgs)
	require.Len(t, rows, len(want))

	seenChats := make(map[string]bool)
	prevChat := ""
	for _, row := range rows {
		assert.Equal(t, want[activityKey{row.ChatTitle, row.UserName, row.UserID}], row.MessageCount)
		assert.False(t, row.FirstAt.After(row.LastAt))
		if row.ChatTitle != prevChat {
			assert.False(t, seenChats[row.ChatTitle], "chat %q is not contiguous", row.ChatTitle)
			seenChats[row.ChatTitle] = true
			prevChat = row.ChatTitle
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestResponseLatencies(t *testing.T) {
	b := &msgBuilder{}
	b.add(1, "Team", 1, "user1", t0, "A").
		add(1, "Team", 2, "user2", t0.Add(300*time.Second), "B").
		add(1, "Team", 2, "user2", t0.Add(400*time.Second), "C").
		add(1, "Team", 1, "user1", t0.Add(500*time.Second), "D")

	got := ResponseLatencies(b.msgs, 6*time.Hour)
	assert.Equal(t, map[int64][]float64{
		2: {300},
		1: {100},
	}, got)
}

func TestResponseLatenciesReplyCapBoundary(t *testing.T) {
	tests := []struct {
		name string
		gap  time.Duration
		want map[int64][]float64
	}{
		{"just under six hours", 21599 * time.Second, map[int64][]float64{2: {21599}}},
		{"exactly six hours", 21600 * time.Second, map[int64][]float64{}},
		{"zero gap", 0, map[int64][]float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &msgBuilder{}
			b.add(1, "Team", 1, "a", t0, "q").
				add(1, "Team", 2, "b", t0.Add(tt.gap), "r")
			assert.Equal(t, tt.want, ResponseLatencies(b.msgs, 6*time.Hour))
		})
	}
}

func TestResponseLatenciesScopedPerChat(t *testing.T) {
	b := &msgBuilder{}
	// Interleaved across chats: each chat's first message only seeds state.
	b.add(1, "One", 1, "a", t0, "x").
		add(2, "Two", 2, "b", t0.Add(time.Minute), "y").
		add(1, "One", 3, "c", t0.Add(2*time.Minute), "z")

	got := ResponseLatencies(b.msgs, 6*time.Hour)
	assert.Equal(t, map[int64][]float64{3: {120}}, got)
}

func TestResponseLatenciesUnsortedInput(t *testing.T) {
	b := &msgBuilder{}
	b.add(1, "Team", 2, "b", t0.Add(90*time.Second), "reply").
		add(1, "Team", 1, "a", t0, "question")

	assert.Equal(t, map[int64][]float64{2: {90}}, ResponseLatencies(b.msgs, 6*time.Hour))
}
