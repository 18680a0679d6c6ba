package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fairytale-server/internal/choices"
	"fairytale-server/internal/config"
	"fairytale-server/shared/models"

	"go.uber.org/zap"
)

// Способ получения ответа, попадает в aiMetrics.method.
const (
	MethodChatCompletions  = "chat_completions"
	MethodStructuredOutput = "structured_output"
)

// systemInstruction - фиксированная роль модели.
const systemInstruction = "You are an expert children's story writer. You write warm, age-appropriate, " +
	"imaginative interactive stories. You always respond with a single valid JSON object and nothing else: " +
	"no markdown, no explanations."

// formatInstruction добавляется к промту как явный пример формата.
const formatInstruction = `

Respond ONLY with JSON in exactly this format:
{
  "story_text": "The next part of the story...",
  "choices": ["First short choice", "Second short choice", "Third short choice"]
}
The "choices" array must contain exactly 3 short options (4-8 words each).`

// Provider - уровень провайдера вместе с клиентом.
type Provider struct {
	Config config.ProviderConfig
	Client ChatClient
}

// RequestConfig - параметры одного запроса генерации.
type RequestConfig struct {
	AgeGroup string
}

// AIResponse - результат успешного вызова провайдера.
type AIResponse struct {
	SegmentText string
	// ChoicesText - варианты через перевод строки, не более трех.
	ChoicesText       string
	Provider          string
	Method            string
	APICalls          int
	FallbackTriggered bool
	Usage             UsageInfo
}

// Orchestrator вызывает основной провайдер, при любой ошибке один раз резервный.
// Повторов и параллельных вызовов нет.
type Orchestrator struct {
	primary  *Provider
	fallback *Provider
	logger   *zap.Logger
}

// NewOrchestrator создает Orchestrator. Любой из уровней может быть nil.
func NewOrchestrator(primary, fallback *Provider, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{primary: primary, fallback: fallback, logger: logger.Named("AIOrchestrator")}
}

// GenerateStorySegment возвращает ответ первого успешного провайдера.
// Если оба провайдера упали, возвращается ошибка основного, обернутая ErrAllProvidersFailed.
func (o *Orchestrator) GenerateStorySegment(ctx context.Context, prompt string, rc RequestConfig) (*AIResponse, error) {
	tiers := []*Provider{o.primary, o.fallback}
	var firstErr error
	calls := 0

	for i, p := range tiers {
		if p == nil || p.Client == nil || !p.Config.IsUsable() {
			if i == 0 {
				o.logger.Warn("Primary provider is not usable, going straight to fallback")
			}
			continue
		}
		if i > 0 {
			fallbackActivations.Inc()
			o.logger.Warn("Trying fallback provider", zap.String("provider", p.Config.Name), zap.Error(firstErr))
		}

		calls++
		resp, err := o.callProvider(ctx, p, prompt, rc)
		if err == nil {
			resp.APICalls = calls
			resp.FallbackTriggered = i > 0
			return resp, nil
		}
		o.logger.Error("Provider failed", zap.String("provider", p.Config.Name),
			zap.String("tier", string(p.Config.Kind)), zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			// Запрос клиента отменен, резервный провайдер не поможет
			break
		}
	}

	if firstErr == nil {
		return nil, models.ErrNoProviderAvailable
	}
	return nil, fmt.Errorf("%w: %w", models.ErrAllProvidersFailed, firstErr)
}

func (o *Orchestrator) callProvider(ctx context.Context, p *Provider, prompt string, rc RequestConfig) (*AIResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.Config.Timeout)
	defer cancel()

	maxTokens := p.Config.MaxTokens
	if budget := config.TokenBudget(rc.AgeGroup); budget < maxTokens {
		maxTokens = budget
	}
	req := CompletionRequest{
		SystemPrompt:     systemInstruction,
		UserPrompt:       prompt + formatInstruction,
		MaxTokens:        maxTokens,
		Temperature:      p.Config.Temperature,
		StructuredOutput: p.Config.StructuredOutput,
	}

	startTime := time.Now()
	raw, usage, err := p.Client.Complete(callCtx, req)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseProviderResponse(raw)
	if err != nil {
		aiRequestsTotal.WithLabelValues(p.Config.Name, p.Config.Model, "error_malformed").Inc()
		return nil, err
	}

	picked := parsed.Choices
	if len(picked) > choices.RequiredChoices {
		picked = picked[:choices.RequiredChoices]
	}
	method := MethodChatCompletions
	if p.Config.StructuredOutput {
		method = MethodStructuredOutput
	}

	o.logger.Info("Story segment generated",
		zap.String("provider", p.Config.Name),
		zap.String("method", method),
		zap.Int("story_len", len(parsed.StoryText)),
		zap.Int("choices", len(parsed.Choices)),
		zap.Duration("duration", time.Since(startTime)))

	return &AIResponse{
		SegmentText: parsed.StoryText,
		ChoicesText: strings.Join(picked, "\n"),
		Provider:    p.Config.Name,
		Method:      method,
		Usage:       usage,
	}, nil
}
