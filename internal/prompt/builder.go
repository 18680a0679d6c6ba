package prompt

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"fairytale-server/internal/config"
	"fairytale-server/shared/models"
)

var placeholderRegex = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)

// ValidatePrompt возвращает ErrUnresolvedPlaceholder, если в тексте остался {placeholder}.
func ValidatePrompt(prompt string) error {
	if leftovers := placeholderRegex.FindAllString(prompt, -1); len(leftovers) > 0 {
		return fmt.Errorf("%w: %s", models.ErrUnresolvedPlaceholder, strings.Join(leftovers, ", "))
	}
	return nil
}

// WritingTarget - целевой объем и описание сложности языка.
type WritingTarget struct {
	WordCount  int
	Complexity string
}

// ResolveWritingTarget выбирает объем по уровню шаблона (1-10), а без уровня - по длине истории.
// Уровень вне диапазона прижимается к границам.
func ResolveWritingTarget(story *models.Story) WritingTarget {
	if story.TemplateLevel != nil {
		level := min(max(*story.TemplateLevel, minLevel), maxLevel)
		step := float64(maxLevelWords-minLevelWords) / float64(maxLevel-minLevel)
		words := int(math.Round(minLevelWords + float64(level-minLevel)*step))
		complexity := levelComplexityHigh
		switch {
		case level <= 3:
			complexity = levelComplexityLow
		case level <= 6:
			complexity = levelComplexityMid
		}
		return WritingTarget{WordCount: words, Complexity: complexity}
	}

	words, ok := lengthWordCounts[strings.ToLower(strings.TrimSpace(story.StoryLength))]
	if !ok {
		words = lengthWordCounts["medium"]
	}
	return WritingTarget{WordCount: words, Complexity: ageComplexity[config.AgeCategory(story.AgeGroup)]}
}

// GenreGuidance возвращает жанровое указание для возраста; неизвестный жанр идет в default.
func GenreGuidance(genre, age string) string {
	byAge, ok := genreGuidance[config.NormalizeGenre(genre)]
	if !ok {
		byAge = genreGuidance["default"]
	}
	return byAge[config.AgeCategory(age)]
}

func baseTemplate(genre, age string) string {
	if byAge, ok := baseTemplates[config.NormalizeGenre(genre)]; ok {
		if tpl, ok := byAge[config.AgeCategory(age)]; ok {
			return tpl
		}
	}
	return defaultTemplate
}

// BuildPrompt собирает пользовательское сообщение для модели.
// previous, characters и tc могут быть nil; userChoice может быть пустым.
func BuildPrompt(story *models.Story, previous *models.Segment, userChoice string,
	characters []models.Character, tc *models.TemplateContext) (string, error) {
	if story == nil {
		return "", fmt.Errorf("%w: story is required to build a prompt", models.ErrInvalidInput)
	}
	if tc == nil {
		tc = &models.TemplateContext{}
	}
	target := ResolveWritingTarget(story)

	replacer := strings.NewReplacer(
		"{theme}", sanitize(firstNonEmpty(tc.Theme, deref(story.Theme), story.Title, story.Genre(), DefaultTheme)),
		"{setting}", sanitize(firstNonEmpty(tc.Setting, deref(story.Setting), story.Description, DefaultSetting)),
		"{characters}", sanitize(describeCharacters(tc.Characters, characters)),
		"{word_count}", fmt.Sprintf("%d", target.WordCount),
		"{complexity}", target.Complexity,
	)

	var sb strings.Builder
	sb.WriteString(replacer.Replace(baseTemplate(story.Genre(), story.AgeGroup) + constraintsTemplate))
	sb.WriteString("\n\nGenre guidance: ")
	sb.WriteString(GenreGuidance(story.Genre(), story.AgeGroup))

	if story.Title != "" {
		fmt.Fprintf(&sb, "\n\nStory title: %s", sanitize(story.Title))
	}
	if story.Description != "" {
		fmt.Fprintf(&sb, "\nStory description: %s", sanitize(story.Description))
	}

	labeled := []struct{ label, value string }{
		{"Central conflict", firstNonEmpty(tc.Conflict, deref(story.Conflict))},
		{"Quest", firstNonEmpty(tc.Quest, deref(story.Quest))},
		{"Moral lesson", firstNonEmpty(tc.MoralLesson, deref(story.MoralLesson))},
		{"Atmosphere", firstNonEmpty(tc.Atmosphere, deref(story.Atmosphere))},
	}
	for _, l := range labeled {
		if l.value != "" {
			fmt.Fprintf(&sb, "\n%s: %s", l.label, sanitize(l.value))
		}
	}

	if previous != nil && strings.TrimSpace(previous.Content) != "" {
		sb.WriteString("\n\nPrevious part of the story:\n")
		sb.WriteString(sanitize(strings.TrimSpace(previous.Content)))
		if choice := strings.TrimSpace(userChoice); choice != "" {
			fmt.Fprintf(&sb, "\n\nThe reader chose: \"%s\"", sanitize(choice))
			sb.WriteString("\nContinue the story from this decision and show what happens because of it.")
		} else {
			sb.WriteString("\n\nContinue the story naturally from this point.")
		}
	} else {
		sb.WriteString("\n\nThis is the beginning of the story. Introduce the main character and the setting.")
	}

	prompt := sb.String()
	if err := ValidatePrompt(prompt); err != nil {
		return "", err
	}
	return prompt, nil
}

// describeCharacters: персонажи шаблона, затем сохраненные персонажи пользователя, затем дефолт.
func describeCharacters(templateChars []models.TemplateCharacter, stored []models.Character) string {
	var parts []string
	for _, c := range templateChars {
		if s := formatCharacter(c.Name, c.Description, c.Role); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		for _, c := range stored {
			if s := formatCharacter(c.Name, c.Description, c.Role); s != "" {
				parts = append(parts, s)
			}
		}
	}
	if len(parts) == 0 {
		return DefaultCharacters
	}
	return strings.Join(parts, ", ")
}

// formatCharacter: "Name: description (role)".
func formatCharacter(name, description, role string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	s := name
	if d := strings.TrimSpace(description); d != "" {
		s += ": " + d
	}
	if r := strings.TrimSpace(role); r != "" {
		s += " (" + r + ")"
	}
	return s
}

// sanitize убирает фигурные скобки из пользовательского текста, чтобы он не выглядел как плейсхолдер.
func sanitize(s string) string {
	return strings.NewReplacer("{", "(", "}", ")").Replace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
