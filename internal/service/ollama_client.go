package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fairytale-server/internal/config"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// ollamaClient использует нативный API Ollama (/api/chat).
type ollamaClient struct {
	client   *api.Client
	provider string
	model    string
	logger   *zap.Logger
}

func newOllamaClient(p config.ProviderConfig, log *zap.Logger) (*ollamaClient, error) {
	// api.NewClient ждет адрес без суффикса /v1
	baseURL := strings.TrimSuffix(strings.TrimSuffix(p.BaseURL, "/"), "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL %q: %w", baseURL, err)
	}
	return &ollamaClient{
		client:   api.NewClient(parsedURL, &http.Client{Timeout: p.Timeout}),
		provider: p.Name,
		model:    p.Model,
		logger:   log,
	}, nil
}

// Complete выполняет не-потоковый chat запрос.
func (c *ollamaClient) Complete(ctx context.Context, req CompletionRequest) (string, UsageInfo, error) {
	usage := UsageInfo{}
	stream := false
	chatReq := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	if req.StructuredOutput {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)
	if err != nil {
		aiRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Ollama request timed out", zap.Duration("duration", duration))
		} else {
			c.logger.Warn("Ollama request failed", zap.Duration("duration", duration), zap.Error(err))
		}
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		aiRequestsTotal.WithLabelValues(c.provider, c.model, "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())

	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	recordUsage(c.provider, usage)

	c.logger.Info("Ollama response received",
		zap.Duration("duration", duration),
		zap.Int("response_len", len(resp.Message.Content)),
		zap.String("done_reason", resp.DoneReason))
	return resp.Message.Content, usage, nil
}
