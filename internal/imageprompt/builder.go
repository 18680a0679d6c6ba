package imageprompt

import (
	"strings"

	"fairytale-server/internal/config"
	"fairytale-server/shared/models"
)

// BuildImagePrompt собирает промпт иллюстрации из текста сегмента, жанра и возраста истории
// и описаний известных персонажей. Сетевых вызовов нет.
func BuildImagePrompt(story *models.Story, segmentText string, previousSegments []models.Segment, known []models.Character) string {
	genre, age := "", ""
	if story != nil {
		genre, age = story.Genre(), story.AgeGroup
	}

	var sb strings.Builder
	sb.WriteString("A ")
	sb.WriteString(ExtractAtmosphere(segmentText))
	sb.WriteString(" scene in ")
	sb.WriteString(withArticle(ExtractSetting(segmentText, previousSegments)))
	sb.WriteString(", showing ")
	sb.WriteString(leadCharacter(segmentText, known))
	sb.WriteString(" ")
	sb.WriteString(ExtractAction(segmentText))
	if objects := ExtractObjects(segmentText); len(objects) > 0 {
		sb.WriteString(" with ")
		sb.WriteString(strings.Join(objects, " and "))
	}
	sb.WriteString(". Art style: ")
	sb.WriteString(config.ArtStyle(genre, age))
	sb.WriteString(". ")
	sb.WriteString(ageQuality[config.AgeCategory(age)])
	sb.WriteString(", ")
	sb.WriteString(qualitySuffix)
	sb.WriteString(". ")
	sb.WriteString(NegativePrompt)
	return sb.String()
}

// withArticle: "mysterious place" -> "a mysterious place"; фразы таблицы уже с артиклем.
func withArticle(setting string) string {
	lower := strings.ToLower(setting)
	for _, prefix := range []string{"a ", "an ", "the ", "outer ", "high ", "rolling "} {
		if strings.HasPrefix(lower, prefix) {
			return setting
		}
	}
	return "a " + setting
}
