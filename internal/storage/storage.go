package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/chat-report-bot/internal/models"
)

// ErrIO marks failures of the underlying store. Every error returned by a
// Storage implementation matches it with errors.Is.
var ErrIO = errors.New("storage i/o failure")

// Storage is the append-only event store for observed messages.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Record appends a message and sets its ID.
	Record(ctx context.Context, msg *models.Message) error
	// MessagesSince returns messages with a timestamp strictly after since,
	// ordered by chat ID, timestamp and ID.
	MessagesSince(ctx context.Context, since time.Time) ([]models.Message, error)
	Close() error
}

// OpError describes a failed storage operation.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Is(target error) bool { return target == ErrIO }

func opError(op string, err error) error {
	return &OpError{Op: op, Err: err}
}

// DatabaseConfig selects and configures a storage backend.
type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)
