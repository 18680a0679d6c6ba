package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fairytale-server/internal/config"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

var geminiSegmentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"story_text": {Type: genai.TypeString},
		"choices": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"story_text", "choices"},
}

type geminiClient struct {
	client   *genai.Client
	provider string
	model    string
	logger   *zap.Logger
}

func newGeminiClient(ctx context.Context, p config.ProviderConfig, log *zap.Logger) (*geminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:     p.Credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: p.Timeout},
	}
	if p.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiClient{client: client, provider: p.Name, model: p.Model, logger: log}, nil
}

func (c *geminiClient) Complete(ctx context.Context, req CompletionRequest) (string, UsageInfo, error) {
	usage := UsageInfo{}
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:   int32(req.MaxTokens),
	}
	if req.StructuredOutput {
		genConfig.ResponseMIMEType = "application/json"
		genConfig.ResponseSchema = geminiSegmentSchema
	}

	startTime := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)},
		genConfig)
	duration := time.Since(startTime)
	if err != nil {
		aiRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		c.logger.Warn("Gemini request failed", zap.Duration("duration", duration), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		aiRequestsTotal.WithLabelValues(c.provider, c.model, "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
	if md := resp.UsageMetadata; md != nil {
		usage.PromptTokens = int(md.PromptTokenCount)
		usage.CompletionTokens = int(md.CandidatesTokenCount)
		usage.TotalTokens = int(md.TotalTokenCount)
	}
	recordUsage(c.provider, usage)

	c.logger.Info("Gemini response received", zap.Duration("duration", duration), zap.Int("response_len", len(text)))
	return text, usage, nil
}
