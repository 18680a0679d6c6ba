package choices

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"fairytale-server/shared/models"

	"github.com/google/uuid"
)

// RequiredChoices - ровно столько вариантов получает каждый сегмент.
const RequiredChoices = 3

// Стратегии разбора, в порядке применения.
const (
	StrategyLines      = "lines"
	StrategySentences  = "sentences"
	StrategyDelimiters = "delimiters"
	StrategyNone       = "none"
)

// choiceNamespace - пространство имен для детерминированных id вариантов.
var choiceNamespace = uuid.MustParse("6f1c2a4e-8b7d-4c1e-9a3f-2d5e7b9c0a11")

var (
	// 1. 1) 1: A. A) - • *
	listPrefixRegex = regexp.MustCompile(`^\s*(?:\d+\s*[.):]|[A-Za-z][.)]|[-•*])\s*`)
	pureNumberRegex = regexp.MustCompile(`^\d+$`)
	sentenceSplit   = regexp.MustCompile(`[.!?]+`)
	delimiterSplit  = regexp.MustCompile(`[,;\n|-]`)
)

const quoteChars = "\"'“”‘’«»`"

// Result - варианты выбора и сведения о том, как они получены.
type Result struct {
	Choices       []models.Choice
	Strategy      string // стратегия, давшая разобранные варианты
	ParsedCount   int    // сколько вариантов пришло от модели
	FallbackRule  string // правило таблицы, если понадобилось дополнение
	FallbackCount int
}

// ParseChoices возвращает ровно три варианта для сегмента.
func ParseChoices(choicesText, storyText string) []models.Choice {
	return Parse(choicesText, storyText).Choices
}

// Parse применяет каскад стратегий и дополняет недостающее контекстными вариантами.
// Одинаковый вход всегда дает одинаковый результат, включая id.
func Parse(choicesText, storyText string) Result {
	strategies := []struct {
		name string
		fn   func(string) []string
	}{
		{StrategyLines, splitLines},
		{StrategySentences, extractSentences},
		{StrategyDelimiters, splitDelimiters},
	}

	best, bestName := []string(nil), StrategyNone
	for _, s := range strategies {
		found := s.fn(choicesText)
		if len(found) > len(best) {
			best, bestName = found, s.name
		}
		if len(best) >= RequiredChoices {
			break
		}
	}

	result := Result{Strategy: bestName, ParsedCount: len(best)}
	texts := append([]string(nil), best...)
	if len(texts) < RequiredChoices {
		rule, fallbacks := matchFallback(storyText)
		result.FallbackRule = rule
		for _, pool := range [][3]string{fallbacks, GenericChoices} {
			for _, f := range pool {
				if len(texts) >= RequiredChoices {
					break
				}
				if !containsFold(texts, f) {
					texts = append(texts, f)
					result.FallbackCount++
				}
			}
		}
	}

	result.Choices = make([]models.Choice, 0, RequiredChoices)
	for i, text := range texts[:RequiredChoices] {
		result.Choices = append(result.Choices, models.Choice{
			ID:            choiceID(storyText, i, text),
			Text:          text,
			NextSegmentID: nil,
		})
	}
	return result
}

// splitLines - построчный разбор со снятием нумерации, маркеров и кавычек.
func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = cleanFragment(line)
		if utf8.RuneCountInString(line) <= 5 || pureNumberRegex.MatchString(line) {
			continue
		}
		out = append(out, line)
		if len(out) == RequiredChoices {
			break
		}
	}
	return out
}

// extractSentences - весь текст в одну строку, затем разбиение по концу предложения.
func extractSentences(text string) []string {
	joined := strings.Join(strings.Fields(text), " ")
	var out []string
	for _, frag := range sentenceSplit.Split(joined, -1) {
		frag = strings.Trim(strings.TrimSpace(frag), quoteChars)
		n := utf8.RuneCountInString(frag)
		if n <= 5 || n >= 100 {
			continue
		}
		out = append(out, frag)
		if len(out) == RequiredChoices {
			break
		}
	}
	return out
}

// splitDelimiters - разбиение по запятым, точкам с запятой, переводам строк, дефисам и вертикальной черте.
func splitDelimiters(text string) []string {
	var out []string
	for _, frag := range delimiterSplit.Split(text, -1) {
		frag = cleanFragment(frag)
		n := utf8.RuneCountInString(frag)
		if n <= 3 || n >= 50 || pureNumberRegex.MatchString(frag) {
			continue
		}
		out = append(out, frag)
		if len(out) == RequiredChoices {
			break
		}
	}
	return out
}

func cleanFragment(s string) string {
	s = strings.TrimSpace(s)
	s = listPrefixRegex.ReplaceAllString(s, "")
	s = strings.Trim(strings.TrimSpace(s), quoteChars)
	return strings.TrimSpace(s)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

func choiceID(storyText string, index int, text string) string {
	return uuid.NewSHA1(choiceNamespace, []byte(fmt.Sprintf("%s\x00%d\x00%s", storyText, index, text))).String()
}
