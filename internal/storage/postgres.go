package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/chat-report-bot/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

// ParseDatabaseURL turns a postgres:// URL into a DatabaseConfig.
func ParseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported database URL scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   DriverPostgres,
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, opError("open", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, opError("connect", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("PostgreSQL storage ready",
		zap.String("host", config.Host),
		zap.String("dbname", config.DBName))

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return opError("initialize schema", err)
	}

	return nil
}

func (s *PostgresStorage) Record(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (chat_id, chat_title, user_id, user_name, message, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		msg.ChatID,
		msg.ChatTitle,
		msg.UserID,
		msg.UserName,
		msg.Text,
		msg.Timestamp.UTC(),
	).Scan(&msg.ID)
	if err != nil {
		return opError("record message", err)
	}

	return nil
}

func (s *PostgresStorage) MessagesSince(ctx context.Context, since time.Time) ([]models.Message, error) {
	query := `
		SELECT id, chat_id, chat_title, user_id, user_name, message, timestamp
		FROM messages
		WHERE timestamp > $1
		ORDER BY chat_id, timestamp, id`

	rows, err := s.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, opError("query messages", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.ChatTitle,
			&msg.UserID,
			&msg.UserName,
			&msg.Text,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, opError("scan message", err)
		}
		msg.Timestamp = msg.Timestamp.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, opError("iterate messages", err)
	}

	return messages, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
