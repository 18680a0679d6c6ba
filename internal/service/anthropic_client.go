package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fairytale-server/internal/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

type anthropicClient struct {
	client   *anthropic.Client
	provider string
	model    string
	logger   *zap.Logger
}

func newAnthropicClient(p config.ProviderConfig, log *zap.Logger) *anthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(p.Credential),
		option.WithHTTPClient(&http.Client{Timeout: p.Timeout}),
		// Ровно одна попытка на провайдера
		option.WithMaxRetries(0),
	}
	if p.BaseURL != "" {
		// Без завершающего слэша SDK теряет последний сегмент пути
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(p.BaseURL, "/")+"/"))
	}
	return &anthropicClient{
		client:   anthropic.NewClient(opts...),
		provider: p.Name,
		model:    p.Model,
		logger:   log,
	}
}

// Complete вызывает Messages API. Structured output здесь не поддерживается,
// JSON требуется системным промтом.
func (c *anthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, UsageInfo, error) {
	usage := UsageInfo{}
	startTime := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(c.model)),
		MaxTokens:   anthropic.F(int64(req.MaxTokens)),
		Temperature: anthropic.F(req.Temperature),
		System: anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(req.SystemPrompt),
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		}),
	})
	duration := time.Since(startTime)
	if err != nil {
		aiRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		c.logger.Warn("Anthropic request failed", zap.Duration("duration", duration), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		sb.WriteString(block.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		aiRequestsTotal.WithLabelValues(c.provider, c.model, "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
	usage.PromptTokens = int(message.Usage.InputTokens)
	usage.CompletionTokens = int(message.Usage.OutputTokens)
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	recordUsage(c.provider, usage)

	c.logger.Info("Anthropic response received", zap.Duration("duration", duration), zap.Int("response_len", len(text)))
	return text, usage, nil
}
