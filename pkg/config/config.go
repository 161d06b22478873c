package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/xaenox/chat-report-bot/internal/storage"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Tone     ToneConfig     `mapstructure:"tone"`
	Report   ReportConfig   `mapstructure:"report"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type TelegramConfig struct {
	Token      string `mapstructure:"token"`
	AdminID    int64  `mapstructure:"admin_id"`
	WebhookURL string `mapstructure:"webhook_url"`
	// WebhookPath is where the listener accepts webhook updates.
	WebhookPath string `mapstructure:"webhook_path"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type OpenAIConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

type ToneConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	BatchLimit       int  `mapstructure:"batch_limit"`
	MaxMessageLength int  `mapstructure:"max_message_length"`
	Concurrency      int  `mapstructure:"concurrency"`
}

type ReportConfig struct {
	Window      time.Duration `mapstructure:"window"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
	MaxReplyGap time.Duration `mapstructure:"max_reply_gap"`
	Schedule    string        `mapstructure:"schedule"`
	Timezone    string        `mapstructure:"timezone"`
}

type ServerConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// envBindings maps config keys to the environment variables that set them.
// The first listed name wins when several are set.
var envBindings = map[string][]string{
	"telegram.token":       {"BOT_TOKEN", "TELEGRAM_TOKEN"},
	"telegram.admin_id":    {"ADMIN_ID"},
	"telegram.webhook_url": {"WEBHOOK_URL"},
	"openai.api_key":       {"MODEL_API_KEY", "OPENAI_API_KEY"},
	"server.listen_addr":   {"LISTEN_ADDR"},
	"log.level":            {"LOG_LEVEL"},
}

// LoadConfig reads the YAML file at path when it exists and applies the
// environment on top. A missing file is not an error; an unreadable or
// invalid one is.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("telegram.webhook_path", "/telegram/webhook")
	v.SetDefault("database.driver", storage.DriverSQLite)
	v.SetDefault("database.path", "messages.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.max_tokens", 0)
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("openai.timeout", 30*time.Second)
	v.SetDefault("openai.requests_per_minute", 20)
	v.SetDefault("tone.enabled", true)
	v.SetDefault("tone.batch_limit", 20)
	v.SetDefault("tone.max_message_length", 300)
	v.SetDefault("tone.concurrency", 4)
	v.SetDefault("report.window", 24*time.Hour)
	v.SetDefault("report.stale_after", 6*time.Hour)
	v.SetDefault("report.max_reply_gap", 6*time.Hour)
	v.SetDefault("report.schedule", "0 15 * * *")
	v.SetDefault("report.timezone", "UTC")
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	// Enable environment variable support. Unmarshal only consults the
	// environment for keys that have a default or a binding.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// DATABASE_URL overrides the database section
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := storage.ParseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = DatabaseConfig{
			Driver:   dbConfig.Driver,
			Host:     dbConfig.Host,
			Port:     dbConfig.Port,
			User:     dbConfig.User,
			Password: dbConfig.Password,
			DBName:   dbConfig.DBName,
			SSLMode:  dbConfig.SSLMode,
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram token is required (BOT_TOKEN)"))
	}
	if c.Telegram.AdminID <= 0 {
		errs = append(errs, errors.New("admin id must be a positive Telegram user id (ADMIN_ID)"))
	}
	if c.Tone.Enabled && strings.TrimSpace(c.OpenAI.APIKey) == "" {
		errs = append(errs, errors.New("model API key is required while tone analysis is enabled (MODEL_API_KEY)"))
	}

	switch c.Database.Driver {
	case storage.DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case storage.DriverPostgres, storage.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	if c.Report.Window <= 0 || c.Report.StaleAfter <= 0 || c.Report.MaxReplyGap <= 0 {
		errs = append(errs, errors.New("report window, stale_after and max_reply_gap must be positive"))
	}
	if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid report timezone %q: %w", c.Report.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.Report.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid report schedule %q: %w", c.Report.Schedule, err))
	}
	if c.OpenAI.Timeout <= 0 {
		errs = append(errs, errors.New("openai.timeout must be positive"))
	}

	return errors.Join(errs...)
}

// Location returns the time zone the daily schedule runs in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StorageConfig converts the database section for the storage package.
func (c *Config) StorageConfig() storage.DatabaseConfig {
	return storage.DatabaseConfig{
		Driver:   c.Database.Driver,
		Path:     c.Database.Path,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		DBName:   c.Database.DBName,
		SSLMode:  c.Database.SSLMode,
	}
}
