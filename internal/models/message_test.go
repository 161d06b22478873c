package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChatTitle(t *testing.T) {
	assert.Equal(t, "Team", ChatTitle(-100123, "Team"))
	assert.Equal(t, "Private chat 42", ChatTitle(42, ""))
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name                  string
		first, last, username string
		want                  string
	}{
		{"full name with username", "Alice", "Smith", "alice", "Alice Smith (@alice)"},
		{"first name only", "Bob", "", "", "Bob"},
		{"first name with username", "Bob", "", "bobby", "Bob (@bobby)"},
		{"full name without username", "Carol", "Jones", "", "Carol Jones"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.first, tt.last, tt.username))
		})
	}
}

func TestUserActivityActiveDuration(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := UserActivity{FirstAt: start, LastAt: start.Add(10 * time.Minute)}
	assert.Equal(t, 10*time.Minute, a.ActiveDuration())
}
