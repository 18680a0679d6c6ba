package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fairytale-server/internal/config"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed - общая ошибка вызова провайдера.
var ErrAIGenerationFailed = errors.New("AI generation failed")

// UsageInfo содержит информацию об использовании токенов.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	// Estimated - провайдер не вернул usage, значения посчитаны локально.
	Estimated bool
}

// CompletionRequest - один chat-запрос к провайдеру.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	// StructuredOutput просит провайдера ограничить ответ JSON-схемой сегмента.
	StructuredOutput bool
}

// ChatClient определяет интерфейс для взаимодействия с AI провайдером.
type ChatClient interface {
	// Complete отправляет системный и пользовательский промт и возвращает сырой текст ответа.
	Complete(ctx context.Context, req CompletionRequest) (string, UsageInfo, error)
}

// NewChatClient создает клиент для провайдера в зависимости от его backend.
func NewChatClient(ctx context.Context, p config.ProviderConfig, logger *zap.Logger) (ChatClient, error) {
	log := logger.Named("AIClient").With(zap.String("provider", p.Name), zap.String("tier", string(p.Kind)))
	switch p.Backend {
	case config.BackendOpenAI:
		log.Info("Using OpenAI-compatible client", zap.String("base_url", p.BaseURL), zap.String("model", p.Model))
		return newOpenAIClient(p, log), nil
	case config.BackendOllama:
		log.Info("Using Ollama client", zap.String("base_url", p.BaseURL), zap.String("model", p.Model))
		return newOllamaClient(p, log)
	case config.BackendGemini:
		log.Info("Using Gemini client", zap.String("model", p.Model))
		return newGeminiClient(ctx, p, log)
	case config.BackendAnthropic:
		log.Info("Using Anthropic client", zap.String("model", p.Model))
		return newAnthropicClient(p, log), nil
	default:
		return nil, fmt.Errorf("unknown AI backend %q for provider %q", p.Backend, p.Name)
	}
}

// estimateEncodingName - кодировка для оценки, если провайдер не вернул usage.
const estimateEncodingName = "cl100k_base"

var (
	estimateOnce     sync.Once
	estimateEncoding *tiktoken.Tiktoken
)

// estimateUsage считает токены локально. Если словарь недоступен, возвращает нули.
func estimateUsage(req CompletionRequest, completion string, log *zap.Logger) UsageInfo {
	estimateOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(estimateEncodingName)
		if err != nil {
			log.Warn("Token estimation is unavailable", zap.Error(err))
			return
		}
		estimateEncoding = enc
	})
	if estimateEncoding == nil {
		return UsageInfo{}
	}
	prompt := len(estimateEncoding.Encode(req.SystemPrompt, nil, nil)) +
		len(estimateEncoding.Encode(req.UserPrompt, nil, nil))
	completionTokens := len(estimateEncoding.Encode(completion, nil, nil))
	return UsageInfo{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
		Estimated:        true,
	}
}

// recordUsage пишет метрики токенов.
func recordUsage(provider string, usage UsageInfo) {
	if usage.TotalTokens <= 0 {
		return
	}
	aiTokensTotal.WithLabelValues(provider, "prompt").Add(float64(usage.PromptTokens))
	aiTokensTotal.WithLabelValues(provider, "completion").Add(float64(usage.CompletionTokens))
}
