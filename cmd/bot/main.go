package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xaenox/chat-report-bot/internal/bot"
	"github.com/xaenox/chat-report-bot/internal/classifier"
	"github.com/xaenox/chat-report-bot/internal/metrics"
	"github.com/xaenox/chat-report-bot/internal/report"
	"github.com/xaenox/chat-report-bot/internal/scheduler"
	"github.com/xaenox/chat-report-bot/internal/storage"
	"github.com/xaenox/chat-report-bot/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file (optional)")
	flag.Parse()

	// Initialize logger
	bootLogger, _ := zap.NewProduction()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootLogger.Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		bootLogger.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.MustNewMetrics(registry)

	// Initialize storage
	store, err := openStorage(cfg.StorageConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// A nil interface keeps tone analysis off.
	var tone classifier.ToneClassifier
	if cfg.Tone.Enabled {
		tone = classifier.NewGPTClassifier(classifier.GPTConfig{
			APIKey:            cfg.OpenAI.APIKey,
			BaseURL:           cfg.OpenAI.BaseURL,
			Model:             cfg.OpenAI.Model,
			MaxTokens:         cfg.OpenAI.MaxTokens,
			Temperature:       cfg.OpenAI.Temperature,
			Timeout:           cfg.OpenAI.Timeout,
			RequestsPerMinute: cfg.OpenAI.RequestsPerMinute,
		}, logger)
	} else {
		logger.Info("Tone analysis disabled")
	}

	reports := report.NewService(store, tone, report.Options{
		Window:          cfg.Report.Window,
		StaleAfter:      cfg.Report.StaleAfter,
		MaxReplyGap:     cfg.Report.MaxReplyGap,
		ToneBatchLimit:  cfg.Tone.BatchLimit,
		ToneMaxLength:   cfg.Tone.MaxMessageLength,
		ToneConcurrency: cfg.Tone.Concurrency,
	}, m, logger)

	// Initialize bot
	b, err := bot.New(bot.Config{
		Token:      cfg.Telegram.Token,
		AdminID:    cfg.Telegram.AdminID,
		WebhookURL: cfg.Telegram.WebhookURL,
	}, store, reports, m, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	sched := scheduler.New(scheduler.Config{
		Schedule:  cfg.Report.Schedule,
		Location:  cfg.Location(),
		Recipient: cfg.Telegram.AdminID,
	}, reports, b, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if srv := newHTTPServer(gctx, cfg, b, registry); srv != nil {
		g.Go(func() error {
			logger.Info("HTTP listener started", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Start the bot
	g.Go(func() error {
		return b.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Bot stopped with error", zap.Error(err))
		return
	}
	logger.Info("Bot stopped")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

func openStorage(cfg storage.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case storage.DriverMemory:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case storage.DriverPostgres:
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
		return storage.NewPostgresStorage(cfg, logger)
	default:
		logger.Info("Using SQLite storage", zap.String("path", cfg.Path))
		return storage.NewSQLiteStorage(cfg.Path, logger)
	}
}

// newHTTPServer serves metrics and, in webhook mode, Telegram updates. It
// returns nil when neither is needed.
func newHTTPServer(ctx context.Context, cfg *config.Config, b *bot.Bot, registry *prometheus.Registry) *http.Server {
	if !cfg.Server.MetricsEnabled && !b.UsesWebhook() {
		return nil
	}

	mux := http.NewServeMux()
	if cfg.Server.MetricsEnabled {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}
	if b.UsesWebhook() {
		mux.Handle(cfg.Telegram.WebhookPath, b.WebhookHandler(ctx))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
