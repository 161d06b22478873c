package models

import "time"

// UserActivity is one aggregated row of a report: a user's activity in a chat
// within the report window.
type UserActivity struct {
	ChatTitle    string    `json:"chat_title"`
	UserName     string    `json:"user_name"`
	UserID       int64     `json:"user_id"`
	MessageCount int       `json:"message_count"`
	FirstAt      time.Time `json:"first_at"`
	LastAt       time.Time `json:"last_at"`
}

// ActiveDuration is the time between the first and the last message.
func (a UserActivity) ActiveDuration() time.Duration {
	return a.LastAt.Sub(a.FirstAt)
}

// StaleChat is a chat whose latest message is older than the stale threshold
type StaleChat struct {
	ChatTitle  string `json:"chat_title"`
	LastSender string `json:"last_sender"`
}

// ToneBreakdown holds label counts returned by the tone classifier
type ToneBreakdown struct {
	Polite  int `json:"polite"`
	Neutral int `json:"neutral"`
	Rude    int `json:"rude"`
}
