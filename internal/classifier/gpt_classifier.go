package classifier

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/chat-report-bot/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const tonePrompt = `Классифицируй каждое сообщение по тону: вежливое, нейтральное или грубое. Верни JSON вида: [{"текст": "...", "тон": "вежливое"}, ...]`

// GPTConfig configures the OpenAI-compatible chat completion endpoint.
type GPTConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxTokens of zero leaves the limit to the provider.
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	RequestsPerMinute int
}

// GPTClassifier asks a chat completion model for the tone of a batch.
type GPTClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewGPTClassifier creates a classifier paced to cfg.RequestsPerMinute.
func NewGPTClassifier(cfg GPTConfig, logger *zap.Logger) *GPTClassifier {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &GPTClassifier{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		limiter:     limiter,
		logger:      logger,
	}
}

// ClassifyTone sends the batch to the model in a single attempt. Any failure
// is logged and reported as an unknown tone.
func (c *GPTClassifier) ClassifyTone(ctx context.Context, messages []string) (*models.ToneBreakdown, bool) {
	if len(messages) == 0 {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn("Tone classification skipped by rate limit", zap.Error(err))
		return nil, false
	}

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: tonePrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: strings.Join(messages, "\n"),
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
		},
	)
	if err != nil {
		fields := []zap.Field{zap.Error(err), zap.Int("batch_size", len(messages))}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			fields = append(fields, zap.Int("status", apiErr.HTTPStatusCode))
		}
		c.logger.Error("Failed to get GPT response", fields...)
		return nil, false
	}

	if len(resp.Choices) == 0 {
		c.logger.Error("GPT response has no choices", zap.String("model", resp.Model))
		return nil, false
	}

	breakdown := CountLabels(resp.Choices[0].Message.Content)
	return &breakdown, true
}
