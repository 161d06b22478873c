package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/chat-report-bot/internal/metrics"
	"github.com/xaenox/chat-report-bot/internal/models"
	"github.com/xaenox/chat-report-bot/internal/report"
	"go.uber.org/zap"
)

// Telegram rejects messages longer than this many characters.
const maxMessageLength = 4096

const (
	msgAccessDenied = "⛔ Только руководитель может запускать анализ."
	msgBuilding     = "⏳ Формирую отчёт..."
	msgReportFailed = "Не удалось сформировать отчёт. Подробности в логах."
)

// Recorder is the write side of the event store.
type Recorder interface {
	Record(ctx context.Context, msg *models.Message) error
}

// Reporter builds a formatted report.
type Reporter interface {
	Build(ctx context.Context, trigger string) (string, error)
}

// sender is the part of the Telegram API the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Config holds the Telegram credentials and the administrator id.
type Config struct {
	Token      string
	AdminID    int64
	WebhookURL string
}

// Bot records chat messages and answers report commands.
type Bot struct {
	api      *tgbotapi.BotAPI
	client   sender
	recorder Recorder
	reporter Reporter
	adminID  int64
	username string
	webhook  string
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *zap.Logger

	// inflight counts update handlers still running.
	inflight sync.WaitGroup
}

// New connects to the Telegram API with cfg.Token.
func New(cfg Config, recorder Recorder, reporter Reporter, m *metrics.Metrics, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	return &Bot{
		api:      api,
		client:   api,
		recorder: recorder,
		reporter: reporter,
		adminID:  cfg.AdminID,
		username: api.Self.UserName,
		webhook:  cfg.WebhookURL,
		now:      time.Now,
		metrics:  m,
		logger:   logger,
	}, nil
}

// UsesWebhook reports whether updates arrive through WebhookHandler instead
// of long polling.
func (b *Bot) UsesWebhook() bool {
	return b.webhook != ""
}

// Start receives updates until ctx is done. With a webhook configured it
// registers the webhook and waits; updates then come in through
// WebhookHandler. Start returns only after every running handler finished.
func (b *Bot) Start(ctx context.Context) error {
	defer b.Wait()
	if b.UsesWebhook() {
		return b.startWebhook(ctx)
	}
	return b.startPolling(ctx)
}

// Wait blocks until all dispatched update handlers have returned.
func (b *Bot) Wait() {
	b.inflight.Wait()
}

// dispatch handles update in its own goroutine, tracked by Wait.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.HandleUpdate(ctx, update)
	}()
}

func (b *Bot) startPolling(ctx context.Context) error {
	// A leftover webhook makes getUpdates fail.
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) startWebhook(ctx context.Context) error {
	wh, err := tgbotapi.NewWebhook(b.webhook)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	b.logger.Info("Webhook registered", zap.String("url", b.webhook))

	<-ctx.Done()
	return nil
}

// WebhookHandler decodes updates pushed by Telegram. Handling continues in
// the background after the response is written.
func (b *Bot) WebhookHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		update, err := b.api.HandleUpdate(r)
		if err != nil {
			b.logger.Warn("Failed to decode webhook update", zap.Error(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.dispatch(ctx, *update)
		w.WriteHeader(http.StatusOK)
	})
}

// HandleUpdate processes one update. Only new text messages are considered.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil || message.Text == "" {
		return
	}

	if message.IsCommand() && b.addressedToMe(message) {
		b.handleCommand(ctx, message)
		return
	}

	b.handleText(ctx, message)
}

// addressedToMe reports whether a command carries no @mention or mentions
// this bot.
func (b *Bot) addressedToMe(message *tgbotapi.Message) bool {
	_, mention, found := strings.Cut(message.CommandWithAt(), "@")
	return !found || strings.EqualFold(mention, b.username)
}

// handleText records the message. Failures are logged and the message is
// dropped; the sender is never told.
func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) {
	msg := &models.Message{
		ChatID:    message.Chat.ID,
		ChatTitle: models.ChatTitle(message.Chat.ID, message.Chat.Title),
		UserID:    message.From.ID,
		UserName:  models.DisplayName(message.From.FirstName, message.From.LastName, message.From.UserName),
		Text:      message.Text,
		Timestamp: b.now().UTC(),
	}

	err := b.recorder.Record(ctx, msg)
	b.metrics.MessageRecorded(err)
	if err != nil {
		b.logger.Error("Failed to record message, dropping it",
			zap.Error(err),
			zap.Int64("chat_id", msg.ChatID),
			zap.Int64("user_id", msg.UserID))
		return
	}

	b.logger.Debug("Message recorded",
		zap.Int64("id", msg.ID),
		zap.Int64("chat_id", msg.ChatID),
		zap.Int64("user_id", msg.UserID))
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "analyze", "report":
		b.handleAnalyze(ctx, message)
	default:
		b.handleText(ctx, message)
	}
}

func (b *Bot) handleAnalyze(ctx context.Context, message *tgbotapi.Message) {
	if message.From.ID != b.adminID {
		b.logger.Warn("Report requested by non-admin",
			zap.Int64("user_id", message.From.ID),
			zap.Int64("chat_id", message.Chat.ID))
		b.reply(message, msgAccessDenied)
		return
	}

	b.reply(message, msgBuilding)

	// A report already requested runs to completion during shutdown.
	ctx = context.WithoutCancel(ctx)

	text, err := b.reporter.Build(ctx, report.TriggerCommand)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, msgReportFailed)
		return
	}

	if err := b.sendHTML(message.Chat.ID, message.MessageID, text); err != nil {
		b.logger.Error("Failed to send report",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

// SendText delivers an HTML report to chatID, split into as many messages as
// Telegram's length limit requires.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.sendHTML(chatID, 0, text)
}

func (b *Bot) sendHTML(chatID int64, replyToID int, text string) error {
	for i, part := range splitMessage(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if i == 0 {
			msg.ReplyToMessageID = replyToID
		}
		if _, err := b.client.Send(msg); err != nil {
			return fmt.Errorf("send part %d: %w", i+1, err)
		}
	}
	return nil
}

func (b *Bot) reply(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if _, err := b.client.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.client.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

// splitMessage cuts text into parts of at most limit characters, preferring
// line boundaries. Lines longer than limit are cut hard.
func splitMessage(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			parts = append(parts, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			parts = append(parts, string(runes[:limit]))
			runes = runes[limit:]
		}

		extra := len(runes)
		if size > 0 {
			extra++ // newline
		}
		if size+extra > limit {
			flush()
			extra = len(runes)
		}
		if size > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(string(runes))
		size += extra
	}
	flush()

	return parts
}
