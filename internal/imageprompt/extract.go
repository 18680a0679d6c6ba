package imageprompt

import (
	"regexp"
	"strings"

	"fairytale-server/shared/models"
)

var properNounRegex = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

// ExtractSetting ищет место действия в тексте, затем в предыдущих сегментах (с конца).
func ExtractSetting(segmentText string, previousSegments []models.Segment) string {
	if s, ok := firstMatch(settingRules, segmentText); ok {
		return s
	}
	for i := len(previousSegments) - 1; i >= 0; i-- {
		if s, ok := firstMatch(settingRules, previousSegments[i].Content); ok {
			return s
		}
	}
	return DefaultSetting
}

// ExtractAtmosphere возвращает фразу настроения.
func ExtractAtmosphere(text string) string {
	if a, ok := firstMatch(atmosphereRules, text); ok {
		return a
	}
	return DefaultAtmosphere
}

// ExtractAction возвращает главное действие сцены.
func ExtractAction(text string) string {
	if a, ok := firstMatch(actionRules, text); ok {
		return a
	}
	return DefaultAction
}

// ExtractObjects возвращает не больше двух предметов в порядке таблицы.
func ExtractObjects(text string) []string {
	var objects []string
	for _, r := range objectRules {
		if r.pattern.MatchString(text) {
			objects = append(objects, r.phrase)
			if len(objects) == maxObjects {
				break
			}
		}
	}
	return objects
}

// ExtractCharacterNames находит упоминания имен. Служебные слова в начале
// последовательности отбрасываются; имена из нескольких слов идут первыми.
func ExtractCharacterNames(text string) []string {
	var multi, single []string
	seen := map[string]bool{}
	for _, match := range properNounRegex.FindAllString(text, -1) {
		words := strings.Fields(match)
		for len(words) > 0 && isCommonCapitalized(words[0]) {
			words = words[1:]
		}
		if len(words) == 0 {
			continue
		}
		name := strings.Join(words, " ")
		if seen[name] {
			continue
		}
		seen[name] = true
		if len(words) > 1 {
			multi = append(multi, name)
		} else {
			single = append(single, name)
		}
	}
	return append(multi, single...)
}

// leadCharacter выбирает героя сцены: известный персонаж из текста, затем имя из текста,
// затем протагонист, затем обобщенный герой.
func leadCharacter(text string, known []models.Character) string {
	for _, c := range known {
		if mentionsName(text, c.Name) {
			return describeKnown(c)
		}
	}
	if names := ExtractCharacterNames(text); len(names) > 0 {
		return names[0]
	}
	for _, c := range known {
		if c.Role == models.RoleProtagonist && c.Name != "" {
			return describeKnown(c)
		}
	}
	return "a young hero"
}

// mentionsName ищет имя целым словом без учета регистра: "Al" не совпадает с "all".
// \b в RE2 знает только ASCII, поэтому границы слова заданы через \p{L}.
func mentionsName(text, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(name) + `(?:$|[^\p{L}\p{N}_])`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func describeKnown(c models.Character) string {
	look := ""
	if c.Appearance != nil {
		look = strings.TrimSpace(*c.Appearance)
	}
	if look == "" {
		look = strings.TrimSpace(c.Description)
	}
	if look == "" {
		return c.Name
	}
	return c.Name + " (" + look + ")"
}
