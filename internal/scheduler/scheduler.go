package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xaenox/chat-report-bot/internal/report"
	"go.uber.org/zap"
)

// Reporter builds a formatted report.
type Reporter interface {
	Build(ctx context.Context, trigger string) (string, error)
}

// Notifier delivers text to a chat.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Config sets when the daily report runs and who receives it.
type Config struct {
	// Schedule is a standard 5-field cron expression.
	Schedule  string
	Location  *time.Location
	Recipient int64
}

// Scheduler pushes the daily report to the administrator.
type Scheduler struct {
	cron     *cron.Cron
	reporter Reporter
	notifier Notifier
	config   Config
	logger   *zap.Logger
	stopOnce sync.Once
}

// New creates a stopped scheduler. A nil Location means UTC.
func New(cfg Config, reporter Reporter, notifier Notifier, logger *zap.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:     c,
		reporter: reporter,
		notifier: notifier,
		config:   cfg,
		logger:   logger,
	}
}

// Start registers the daily job and starts the cron loop. The scheduler stops
// when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.config.Schedule, func() { s.runDaily(ctx) }); err != nil {
		return fmt.Errorf("invalid report schedule %q: %w", s.config.Schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.String("location", s.config.Location.String()),
		zap.Time("next_run", s.NextRun()))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the cron loop and waits for a running report to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		s.logger.Info("Scheduler stopped")
	})
}

// NextRun returns when the daily report fires next, or the zero time before
// Start.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// runDaily builds the report and sends it to the recipient. The report runs
// to completion even if ctx is canceled meanwhile.
func (s *Scheduler) runDaily(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	text, err := s.reporter.Build(ctx, report.TriggerScheduled)
	if err != nil {
		s.logger.Error("Scheduled report failed", zap.Error(err))
		return
	}

	if err := s.notifier.SendText(ctx, s.config.Recipient, text); err != nil {
		s.logger.Error("Failed to deliver scheduled report",
			zap.Error(err),
			zap.Int64("chat_id", s.config.Recipient))
		return
	}

	s.logger.Info("Scheduled report delivered", zap.Int64("chat_id", s.config.Recipient))
}
