package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fairytale-server/internal/config"
	"fairytale-server/internal/mocks"
	"fairytale-server/internal/service"
	"fairytale-server/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validAIResponse = `{"story_text": "Mia opened the glowing door.", "choices": ["Step inside", "Call for help", "Close the door"]}`

func providerConfig(kind config.ProviderKind, name string) config.ProviderConfig {
	return config.ProviderConfig{
		Kind:        kind,
		Backend:     config.BackendOpenAI,
		Name:        name,
		BaseURL:     "http://localhost",
		Credential:  "sk-test-" + name,
		Model:       "test-model",
		MaxTokens:   5000,
		Temperature: 0.7,
		Timeout:     5 * time.Second,
	}
}

func newTestOrchestrator(t *testing.T) (*service.Orchestrator, *mocks.MockChatClient, *mocks.MockChatClient) {
	primary := mocks.NewMockChatClient(t)
	fallback := mocks.NewMockChatClient(t)
	o := service.NewOrchestrator(
		&service.Provider{Config: providerConfig(config.ProviderPrimary, "openai"), Client: primary},
		&service.Provider{Config: providerConfig(config.ProviderFallback, "ovh"), Client: fallback},
		zap.NewNop(),
	)
	return o, primary, fallback
}

func TestOrchestrator_PrimarySucceeds_FallbackNeverCalled(t *testing.T) {
	o, primary, fallback := newTestOrchestrator(t)
	primary.On("Complete", mock.Anything, mock.Anything).Return(validAIResponse, service.UsageInfo{TotalTokens: 10}, nil).Once()

	resp, err := o.GenerateStorySegment(context.Background(), "prompt", service.RequestConfig{AgeGroup: "7-9"})
	require.NoError(t, err)

	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 1, resp.APICalls)
	assert.False(t, resp.FallbackTriggered)
	assert.Equal(t, service.MethodChatCompletions, resp.Method)
	assert.Equal(t, "Mia opened the glowing door.", resp.SegmentText)
	assert.Equal(t, "Step inside\nCall for help\nClose the door", resp.ChoicesText)
	primary.AssertNumberOfCalls(t, "Complete", 1)
	fallback.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestOrchestrator_PrimaryFails_FallbackCalledOnce(t *testing.T) {
	failures := map[string]func(*mocks.MockChatClient){
		"transport error": func(m *mocks.MockChatClient) {
			m.On("Complete", mock.Anything, mock.Anything).Return("", service.UsageInfo{}, errors.New("HTTP 500")).Once()
		},
		"malformed json": func(m *mocks.MockChatClient) {
			m.On("Complete", mock.Anything, mock.Anything).Return("not json at all", service.UsageInfo{}, nil).Once()
		},
		"missing fields": func(m *mocks.MockChatClient) {
			m.On("Complete", mock.Anything, mock.Anything).Return(`{"story_text": "only text"}`, service.UsageInfo{}, nil).Once()
		},
	}
	for name, setup := range failures {
		t.Run(name, func(t *testing.T) {
			o, primary, fallback := newTestOrchestrator(t)
			setup(primary)
			fallback.On("Complete", mock.Anything, mock.Anything).Return(validAIResponse, service.UsageInfo{}, nil).Once()

			resp, err := o.GenerateStorySegment(context.Background(), "prompt", service.RequestConfig{AgeGroup: "4-6"})
			require.NoError(t, err)
			assert.Equal(t, "ovh", resp.Provider)
			assert.True(t, resp.FallbackTriggered)
			assert.Equal(t, 2, resp.APICalls)
			primary.AssertNumberOfCalls(t, "Complete", 1)
			fallback.AssertNumberOfCalls(t, "Complete", 1)
		})
	}
}

func TestOrchestrator_BothFail_ReturnsPrimaryError(t *testing.T) {
	o, primary, fallback := newTestOrchestrator(t)
	primaryErr := errors.New("primary exploded")
	primary.On("Complete", mock.Anything, mock.Anything).Return("", service.UsageInfo{}, primaryErr).Once()
	fallback.On("Complete", mock.Anything, mock.Anything).Return("", service.UsageInfo{}, errors.New("fallback exploded")).Once()

	resp, err := o.GenerateStorySegment(context.Background(), "prompt", service.RequestConfig{})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrAllProvidersFailed)
	assert.ErrorIs(t, err, primaryErr)
	assert.NotContains(t, err.Error(), "fallback exploded")
	primary.AssertNumberOfCalls(t, "Complete", 1)
	fallback.AssertNumberOfCalls(t, "Complete", 1)
}

func TestOrchestrator_UnusablePrimary_GoesStraightToFallback(t *testing.T) {
	fallback := mocks.NewMockChatClient(t)
	unusable := providerConfig(config.ProviderPrimary, "openai")
	unusable.Credential = "your-api-key"
	o := service.NewOrchestrator(
		&service.Provider{Config: unusable, Client: mocks.NewMockChatClient(t)},
		&service.Provider{Config: providerConfig(config.ProviderFallback, "ovh"), Client: fallback},
		zap.NewNop(),
	)
	fallback.On("Complete", mock.Anything, mock.Anything).Return(validAIResponse, service.UsageInfo{}, nil).Once()

	resp, err := o.GenerateStorySegment(context.Background(), "prompt", service.RequestConfig{})
	require.NoError(t, err)
	assert.Equal(t, "ovh", resp.Provider)
	assert.Equal(t, 1, resp.APICalls)
	assert.True(t, resp.FallbackTriggered)
}

func TestOrchestrator_NoUsableProvider(t *testing.T) {
	o := service.NewOrchestrator(nil, nil, zap.NewNop())
	_, err := o.GenerateStorySegment(context.Background(), "prompt", service.RequestConfig{})
	assert.ErrorIs(t, err, models.ErrNoProviderAvailable)
}

func TestOrchestrator_RequestShape(t *testing.T) {
	o, primary, _ := newTestOrchestrator(t)
	primary.On("Complete", mock.Anything, mock.MatchedBy(func(req service.CompletionRequest) bool {
		return strings.Contains(req.SystemPrompt, "children's story writer") &&
			strings.HasPrefix(req.UserPrompt, "my prompt") &&
			strings.Contains(req.UserPrompt, `"story_text"`) &&
			strings.Contains(req.UserPrompt, `"choices"`) &&
			req.MaxTokens == config.TokenBudget("10-12") &&
			req.Temperature == 0.7
	})).Return(validAIResponse, service.UsageInfo{}, nil).Once()

	_, err := o.GenerateStorySegment(context.Background(), "my prompt", service.RequestConfig{AgeGroup: "10-12"})
	require.NoError(t, err)
}

func TestOrchestrator_StructuredOutputAndTruncation(t *testing.T) {
	primary := mocks.NewMockChatClient(t)
	cfg := providerConfig(config.ProviderPrimary, "openai")
	cfg.StructuredOutput = true
	o := service.NewOrchestrator(&service.Provider{Config: cfg, Client: primary}, nil, zap.NewNop())

	primary.On("Complete", mock.Anything, mock.MatchedBy(func(req service.CompletionRequest) bool {
		return req.StructuredOutput
	})).Return(`{"story_text": "Text", "choices": ["One choice", "Two choice", "Three choice", "Four choice"]}`,
		service.UsageInfo{}, nil).Once()

	resp, err := o.GenerateStorySegment(context.Background(), "prompt", service.RequestConfig{})
	require.NoError(t, err)
	assert.Equal(t, service.MethodStructuredOutput, resp.Method)
	assert.Equal(t, "One choice\nTwo choice\nThree choice", resp.ChoicesText)
}
