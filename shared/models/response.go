package models

// ErrorResponse - стандартная структура для ответа об ошибке в формате JSON.
// Code и Details заполняются только для ошибок конфигурации и валидации.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

// AIMetrics описывает, какой провайдер сгенерировал сегмент и как.
type AIMetrics struct {
	Provider          string `json:"provider"`
	Method            string `json:"method"`
	APICallsMade      int    `json:"api_calls_made"`
	FallbackTriggered bool   `json:"fallback_triggered"`
	StoryLength       int    `json:"story_length"`
	ChoicesCount      int    `json:"choices_count"`
}

// GenerateSegmentResponse - успешный ответ эндпоинта генерации сегмента.
type GenerateSegmentResponse struct {
	Success     bool      `json:"success"`
	Segment     *Segment  `json:"segment"`
	ImagePrompt string    `json:"imagePrompt"`
	Message     string    `json:"message"`
	AIMetrics   AIMetrics `json:"aiMetrics"`
}

// Машиночитаемые коды ошибок в ErrorResponse.Code.
const (
	CodeConfigMissing      = "CONFIG_MISSING"
	CodeNoAIProvider       = "NO_AI_PROVIDER"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeStoryNotFound      = "STORY_NOT_FOUND"
	CodeAIGenerationFailed = "AI_GENERATION_FAILED"
	CodePromptInvalid      = "PROMPT_INVALID"
	CodePersistenceFailed  = "PERSISTENCE_FAILED"
	CodeInternalError      = "INTERNAL_ERROR"
)
