package models

import (
	"fmt"
	"strings"
	"time"
)

// Message represents one observed text message in a chat
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	ChatTitle string    `json:"chat_title"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatTitle returns the display title of a chat, falling back to
// "Private chat <id>" for chats without a title.
func ChatTitle(chatID int64, title string) string {
	if title != "" {
		return title
	}
	return fmt.Sprintf("Private chat %d", chatID)
}

// DisplayName builds "Full Name (@username)", or just the full name when the
// user has no username.
func DisplayName(firstName, lastName, username string) string {
	fullName := firstName
	if lastName != "" {
		fullName = strings.TrimSpace(firstName + " " + lastName)
	}
	if username != "" {
		return fmt.Sprintf("%s (@%s)", fullName, username)
	}
	return fullName
}
