package imageprompt

import (
	"regexp"
	"strings"
)

var (
	pronounRegex        = regexp.MustCompile(`(?i)\b(he|she|they|him|her|his|hers|their|them)\b`)
	characterCueRegex   = regexp.MustCompile(`(?i)\b(named|called|character|hero|heroine|girl|boy|princess|prince|friend)\b`)
	characterVerbRegex  = regexp.MustCompile(`(?i)\b(smiled|laughed|said|asked|felt|waved|hugged|cried|whispered|giggled|shouted|nodded)\b`)
	characterSceneRegex = regexp.MustCompile(`(?i)\b(portrait|close-up|face|family|meeting|conversation|celebration)\b`)
	capitalizedWord     = regexp.MustCompile(`\b[A-Z][a-zA-Z]+\b`)
)

// DefaultMainCharacter возвращается, если имя найти не удалось.
const DefaultMainCharacter = "Main Character"

// NeedsCharacterConsistency - нужна ли сцене та же внешность героя, что и в прошлых сегментах.
func NeedsCharacterConsistency(segmentText, imagePrompt string) bool {
	combined := segmentText + " " + imagePrompt
	for _, re := range []*regexp.Regexp{pronounRegex, characterCueRegex, characterVerbRegex, characterSceneRegex} {
		if re.MatchString(combined) {
			return true
		}
	}
	return false
}

// ExtractMainCharacter возвращает первое слово с заглавной буквы длиннее двух символов,
// которое не входит в список служебных слов.
func ExtractMainCharacter(text string) string {
	for _, word := range capitalizedWord.FindAllString(text, -1) {
		if len(word) <= 2 || isCommonCapitalized(word) {
			continue
		}
		return strings.TrimSpace(word)
	}
	return DefaultMainCharacter
}
