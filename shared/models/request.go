package models

// GenerateSegmentRequest - тело запроса на генерацию следующего сегмента.
type GenerateSegmentRequest struct {
	StoryID         string           `json:"storyId" validate:"required,max=64"`
	ChoiceIndex     *int             `json:"choiceIndex,omitempty" validate:"omitempty,min=0"`
	TemplateContext *TemplateContext `json:"templateContext,omitempty"`
}

// ImageTask - задача для соседнего сервиса генерации изображений.
type ImageTask struct {
	SegmentID   string `json:"segmentId"`
	StoryID     string `json:"storyId,omitempty"`
	ImagePrompt string `json:"imagePrompt"`
	// ConsistentCharacter просит сохранить внешность главного героя между сегментами.
	ConsistentCharacter bool   `json:"consistentCharacter,omitempty"`
	CharacterName       string `json:"characterName,omitempty"`
	AuthToken           string `json:"-"`
}
