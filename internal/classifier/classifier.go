package classifier

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/chat-report-bot/internal/models"
)

// Tone labels the model is asked to use. They are matched as plain substrings.
const (
	LabelPolite  = "вежливое"
	LabelNeutral = "нейтральное"
	LabelRude    = "грубое"
)

const (
	DefaultBatchLimit       = 20
	DefaultMaxMessageLength = 300
)

// ToneClassifier labels the tone of a batch of messages. A false result means
// the tone is unknown; it is never an error for the caller.
type ToneClassifier interface {
	ClassifyTone(ctx context.Context, messages []string) (*models.ToneBreakdown, bool)
}

// Candidates keeps non-blank messages shorter than maxLen characters and
// returns at most limit of them, preserving order.
func Candidates(messages []string, limit, maxLen int) []string {
	if limit <= 0 {
		return nil
	}
	result := make([]string, 0, limit)
	for _, msg := range messages {
		if len(result) >= limit {
			break
		}
		if strings.TrimSpace(msg) == "" {
			continue
		}
		if utf8.RuneCountInString(msg) >= maxLen {
			continue
		}
		result = append(result, msg)
	}
	return result
}

// CountLabels counts label occurrences in a free-form model response.
// Counting is approximate: the response is not parsed, and a label that
// appears inside another word is counted too.
func CountLabels(response string) models.ToneBreakdown {
	text := strings.ToLower(response)
	return models.ToneBreakdown{
		Polite:  strings.Count(text, LabelPolite),
		Neutral: strings.Count(text, LabelNeutral),
		Rude:    strings.Count(text, LabelRude),
	}
}
