package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"fairytale-server/shared/models"
	"fairytale-server/shared/utils"
)

// ProviderResponse - структурированный ответ провайдера.
type ProviderResponse struct {
	StoryText string
	Choices   []string
}

type rawProviderResponse struct {
	StoryText *string           `json:"story_text"`
	Choices   []json.RawMessage `json:"choices"`
}

// ParseProviderResponse разбирает сырой текст модели в {story_text, choices}.
// Снимает markdown-обертку, вырезает первый объект {...} и парсит его.
// Отсутствие story_text или choices - ошибка ErrMalformedProviderResponse.
func ParseProviderResponse(raw string) (*ProviderResponse, error) {
	cleaned := utils.StripCodeFences(raw)
	object := utils.ExtractFirstJSONObject(cleaned)
	if object == "" {
		return nil, fmt.Errorf("%w: no JSON object found (%q)", models.ErrMalformedProviderResponse, utils.StringShort(cleaned, 80))
	}

	var parsed rawProviderResponse
	if err := json.Unmarshal([]byte(object), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedProviderResponse, err)
	}
	if parsed.StoryText == nil || strings.TrimSpace(*parsed.StoryText) == "" {
		return nil, fmt.Errorf("%w: missing story_text", models.ErrMalformedProviderResponse)
	}
	if parsed.Choices == nil {
		return nil, fmt.Errorf("%w: missing choices", models.ErrMalformedProviderResponse)
	}

	result := &ProviderResponse{StoryText: strings.TrimSpace(*parsed.StoryText)}
	for _, item := range parsed.Choices {
		if text := choiceText(item); text != "" {
			result.Choices = append(result.Choices, text)
		}
	}
	return result, nil
}

// choiceText принимает как строку, так и объект {"text": "..."}: некоторые модели
// возвращают варианты объектами.
func choiceText(item json.RawMessage) string {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(item, &obj); err == nil {
		return strings.TrimSpace(obj.Text)
	}
	return ""
}
