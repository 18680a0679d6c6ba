package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fairytale-server/internal/config"

	openaigo "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
)

// segmentSchema - JSON-схема ответа для structured output.
var segmentSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"story_text": {
			Type:        jsonschema.String,
			Description: "The next part of the story.",
		},
		"choices": {
			Type:        jsonschema.Array,
			Description: "Exactly three short choices for the reader.",
			Items:       &jsonschema.Definition{Type: jsonschema.String},
		},
	},
	Required:             []string{"story_text", "choices"},
	AdditionalProperties: false,
}

// openAIClient говорит с любым OpenAI-совместимым /chat/completions.
type openAIClient struct {
	client   *openaigo.Client
	provider string
	model    string
	logger   *zap.Logger
}

func newOpenAIClient(p config.ProviderConfig, log *zap.Logger) *openAIClient {
	cfg := openaigo.DefaultConfig(p.Credential)
	cfg.BaseURL = strings.TrimSuffix(p.BaseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: p.Timeout}
	return &openAIClient{
		client:   openaigo.NewClientWithConfig(cfg),
		provider: p.Name,
		model:    p.Model,
		logger:   log,
	}
}

// Complete отправляет chat completion запрос.
func (c *openAIClient) Complete(ctx context.Context, req CompletionRequest) (string, UsageInfo, error) {
	usage := UsageInfo{}
	request := openaigo.ChatCompletionRequest{
		Model: c.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openaigo.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if req.StructuredOutput {
		request.ResponseFormat = &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openaigo.ChatCompletionResponseFormatJSONSchema{
				Name:   "story_segment",
				Schema: &segmentSchema,
				Strict: true,
			},
		}
	}

	startTime := time.Now()
	c.logger.Debug("Sending chat completion request",
		zap.Int("prompt_bytes", len(req.UserPrompt)),
		zap.Int("max_tokens", req.MaxTokens),
		zap.Bool("structured", req.StructuredOutput))

	resp, err := c.client.CreateChatCompletion(ctx, request)
	duration := time.Since(startTime)
	if err != nil {
		aiRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		c.logger.Warn("Chat completion failed", zap.Duration("duration", duration), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		aiRequestsTotal.WithLabelValues(c.provider, c.model, "error_empty_response").Inc()
		c.logger.Warn("Chat completion returned empty content", zap.Duration("duration", duration))
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())

	content := resp.Choices[0].Message.Content
	if resp.Usage.TotalTokens > 0 {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
		usage.TotalTokens = resp.Usage.TotalTokens
	} else {
		// Часть совместимых эндпоинтов не возвращает usage
		usage = estimateUsage(req, content, c.logger)
	}
	recordUsage(c.provider, usage)

	c.logger.Info("Chat completion received",
		zap.Duration("duration", duration),
		zap.Int("response_len", len(content)),
		zap.Int("total_tokens", usage.TotalTokens),
		zap.Bool("usage_estimated", usage.Estimated))
	return content, usage, nil
}
