package report

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/chat-report-bot/internal/classifier"
	"github.com/xaenox/chat-report-bot/internal/metrics"
	"github.com/xaenox/chat-report-bot/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Report triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerCommand   = "command"
)

// MessageSource is the read side of the event store.
type MessageSource interface {
	MessagesSince(ctx context.Context, since time.Time) ([]models.Message, error)
}

// Options tunes the report window and tone classification.
type Options struct {
	Window          time.Duration
	StaleAfter      time.Duration
	MaxReplyGap     time.Duration
	ToneBatchLimit  int
	ToneMaxLength   int
	ToneConcurrency int
}

// DefaultOptions returns the 24 hour window with 6 hour stale and reply limits.
func DefaultOptions() Options {
	return Options{
		Window:          24 * time.Hour,
		StaleAfter:      6 * time.Hour,
		MaxReplyGap:     6 * time.Hour,
		ToneBatchLimit:  classifier.DefaultBatchLimit,
		ToneMaxLength:   classifier.DefaultMaxMessageLength,
		ToneConcurrency: 4,
	}
}

// Service builds reports from the event store. It keeps no state between
// builds, so concurrent builds are independent.
type Service struct {
	source  MessageSource
	tone    classifier.ToneClassifier
	opts    Options
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService creates a Service. tone may be nil, in which case reports carry
// no tone breakdown.
func NewService(source MessageSource, tone classifier.ToneClassifier, opts Options, m *metrics.Metrics, logger *zap.Logger) *Service {
	if opts.ToneConcurrency <= 0 {
		opts.ToneConcurrency = 1
	}
	return &Service{
		source:  source,
		tone:    tone,
		opts:    opts,
		now:     time.Now,
		metrics: m,
		logger:  logger,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Build produces the formatted report for the window ending now. Storage
// errors are returned; tone classification failures only drop the tone
// suffix of the affected user.
func (s *Service) Build(ctx context.Context, trigger string) (string, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID), zap.String("trigger", trigger))

	text, err := s.build(ctx, logger)
	s.metrics.ReportBuilt(trigger, time.Since(started), err)
	if err != nil {
		logger.Error("Failed to build report", zap.Error(err))
		return "", err
	}

	logger.Info("Report built", zap.Duration("elapsed", time.Since(started)))
	return text, nil
}

func (s *Service) build(ctx context.Context, logger *zap.Logger) (string, error) {
	now := s.now().UTC()
	windowStart := now.Add(-s.opts.Window)

	messages, err := s.source.MessagesSince(ctx, windowStart)
	if err != nil {
		return "", fmt.Errorf("load messages since %s: %w", windowStart.Format(time.RFC3339), err)
	}

	activities := Aggregate(messages)
	logger.Debug("Window loaded",
		zap.Int("messages", len(messages)),
		zap.Int("rows", len(activities)))

	return Format(Input{
		Activities: activities,
		Latencies:  ResponseLatencies(messages, s.opts.MaxReplyGap),
		Stale:      DetectStale(messages, now.Add(-s.opts.StaleAfter)),
		Tones:      s.classifyTones(ctx, messages, activities, logger),
	}), nil
}

// Aggregate loads the window starting at windowStart and aggregates it.
func (s *Service) Aggregate(ctx context.Context, windowStart time.Time) ([]models.UserActivity, error) {
	messages, err := s.source.MessagesSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	return Aggregate(messages), nil
}

// ResponseLatencies loads the window starting at windowStart and returns the
// latency samples per user ID.
func (s *Service) ResponseLatencies(ctx context.Context, windowStart time.Time) (map[int64][]float64, error) {
	messages, err := s.source.MessagesSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	return ResponseLatencies(messages, s.opts.MaxReplyGap), nil
}

// DetectStale loads the window starting at windowStart and flags chats whose
// last message is older than threshold.
func (s *Service) DetectStale(ctx context.Context, windowStart, threshold time.Time) ([]models.StaleChat, error) {
	messages, err := s.source.MessagesSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	return DetectStale(messages, threshold), nil
}

// classifyTones asks the classifier about every user that has candidate
// messages. Users are classified concurrently, at most ToneConcurrency at a
// time.
func (s *Service) classifyTones(ctx context.Context, messages []models.Message, activities []models.UserActivity, logger *zap.Logger) map[int64]*models.ToneBreakdown {
	tones := make(map[int64]*models.ToneBreakdown)
	if s.tone == nil || len(activities) == 0 {
		return tones
	}

	texts := textsByUser(messages)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.ToneConcurrency)

	requested := make(map[int64]bool)
	for _, row := range activities {
		userID := row.UserID
		if requested[userID] {
			continue
		}
		requested[userID] = true

		batch := classifier.Candidates(texts[userID], s.opts.ToneBatchLimit, s.opts.ToneMaxLength)
		if len(batch) == 0 {
			continue
		}

		g.Go(func() error {
			result, ok := s.tone.ClassifyTone(ctx, batch)
			s.metrics.ToneClassified(ok)
			if !ok {
				logger.Warn("Tone unknown for user", zap.Int64("user_id", userID))
				return nil
			}
			mu.Lock()
			tones[userID] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return tones
}

// textsByUser returns every user's message texts across all chats in
// timestamp order.
func textsByUser(messages []models.Message) map[int64][]string {
	ordered := make([]models.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})

	texts := make(map[int64][]string)
	for _, msg := range ordered {
		texts[msg.UserID] = append(texts[msg.UserID], msg.Text)
	}
	return texts
}
