package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/chat-report-bot/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	nextID   int64
	messages []models.Message
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{nextID: 1}
}

func (s *MemoryStorage) Record(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return opError("record message", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.nextID
	s.nextID++

	stored := *msg
	stored.Timestamp = stored.Timestamp.UTC()
	s.messages = append(s.messages, stored)
	return nil
}

func (s *MemoryStorage) MessagesSince(ctx context.Context, since time.Time) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, opError("query messages", err)
	}

	s.mu.RLock()
	result := make([]models.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if msg.Timestamp.After(since) {
			result = append(result, msg)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.ChatID != b.ChatID {
			return a.ChatID < b.ChatID
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})

	return result, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
