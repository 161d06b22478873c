package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/xaenox/chat-report-bot/internal/models"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations_sqlite.sql
var sqliteSchema string

// timestampLayout is fixed width so that text comparison in SQL orders the
// same way as time does. The column is declared TEXT so the driver hands the
// value back untouched.
const timestampLayout = "2006-01-02 15:04:05.000000000"

// SQLiteStorage keeps messages in a local SQLite file. All statements go
// through a single connection, which serializes concurrent appends.
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, opError("open", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, opError("connect", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, opError("initialize schema", err)
	}

	logger.Info("SQLite storage ready", zap.String("path", path))

	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) Record(ctx context.Context, msg *models.Message) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, chat_title, user_id, user_name, message, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ChatID,
		msg.ChatTitle,
		msg.UserID,
		msg.UserName,
		msg.Text,
		formatTimestamp(msg.Timestamp),
	)
	if err != nil {
		return opError("record message", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return opError("record message", err)
	}
	msg.ID = id

	return nil
}

func (s *SQLiteStorage) MessagesSince(ctx context.Context, since time.Time) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, chat_title, user_id, user_name, message, timestamp
		 FROM messages
		 WHERE timestamp > ?
		 ORDER BY chat_id, timestamp, id`,
		formatTimestamp(since),
	)
	if err != nil {
		return nil, opError("query messages", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			msg models.Message
			ts  string
		)
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.ChatTitle, &msg.UserID, &msg.UserName, &msg.Text, &ts); err != nil {
			return nil, opError("scan message", err)
		}
		msg.Timestamp, err = time.ParseInLocation(timestampLayout, ts, time.UTC)
		if err != nil {
			return nil, opError("parse timestamp", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, opError("iterate messages", err)
	}

	return messages, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
