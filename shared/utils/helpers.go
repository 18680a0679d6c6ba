package utils

import (
	"regexp"
	"strings"
)

// fencedBlockRegex находит содержимое первого блока ```lang ... ```.
var fencedBlockRegex = regexp.MustCompile("(?s)```(?:[A-Za-z]+)?\\s*(.*?)\\s*```")

// StripCodeFences убирает markdown-обертку вокруг ответа модели.
// Если блока нет, возвращает обрезанный исходный текст.
func StripCodeFences(rawText string) string {
	rawText = strings.TrimSpace(rawText)
	if matches := fencedBlockRegex.FindStringSubmatch(rawText); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	// Незакрытый блок: модель оборвала ответ после открывающих кавычек.
	if strings.HasPrefix(rawText, "```") {
		rawText = strings.TrimPrefix(rawText, "```")
		if idx := strings.IndexAny(rawText, "\n{"); idx >= 0 {
			rawText = rawText[idx:]
		}
	}
	return strings.TrimSpace(rawText)
}

// ExtractFirstJSONObject возвращает первый сбалансированный объект {...} верхнего уровня.
// Скобки внутри строковых литералов не учитываются. Если объект не закрыт, возвращает "".
func ExtractFirstJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// StringShort обрезает строку до указанной максимальной длины,
// добавляя многоточие, если строка была обрезана.
func StringShort(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
