package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fairytale-server/shared/models"
)

// ProviderKind - уровень провайдера в цепочке fallback.
type ProviderKind string

const (
	ProviderPrimary  ProviderKind = "primary"
	ProviderFallback ProviderKind = "fallback"
)

// Backend - протокол, которым говорит провайдер.
type Backend string

const (
	BackendOpenAI    Backend = "openai" // любой OpenAI-совместимый /chat/completions
	BackendOllama    Backend = "ollama"
	BackendGemini    Backend = "gemini"
	BackendAnthropic Backend = "anthropic"
)

// ProviderConfig - настройки одного уровня провайдера.
type ProviderConfig struct {
	Kind             ProviderKind
	Backend          Backend
	Name             string
	BaseURL          string
	Credential       string
	Model            string
	MaxTokens        int
	Temperature      float64
	Timeout          time.Duration
	StructuredOutput bool
}

// placeholderCredentials - значения из примеров .env, которые нельзя считать ключом.
var placeholderCredentials = map[string]struct{}{
	"your-api-key":        {},
	"your_api_key":        {},
	"your-openai-api-key": {},
	"your_openai_api_key": {},
	"your-ovh-api-key":    {},
	"your_ovh_api_key":    {},
	"<api-key>":           {},
	"<your-api-key>":      {},
	"sk-...":              {},
	"sk-xxx":              {},
	"xxx":                 {},
	"changeme":            {},
	"change-me":           {},
	"placeholder":         {},
	"none":                {},
	"null":                {},
	"undefined":           {},
}

// IsPlaceholderCredential сообщает, что ключ пустой или взят из шаблона.
func IsPlaceholderCredential(credential string) bool {
	c := strings.ToLower(strings.TrimSpace(credential))
	if c == "" {
		return true
	}
	_, ok := placeholderCredentials[c]
	return ok
}

// RequiresCredential - нужен ли провайдеру API ключ. Локальный Ollama работает без ключа.
func (p ProviderConfig) RequiresCredential() bool {
	return p.Backend != BackendOllama
}

// HasCredential - ключ задан или не нужен.
func (p ProviderConfig) HasCredential() bool {
	return !p.RequiresCredential() || !IsPlaceholderCredential(p.Credential)
}

// Problems возвращает список причин, по которым провайдер непригоден.
// Проверка одинакова для обоих уровней, Kind влияет только на подписи.
func (p ProviderConfig) Problems() []string {
	var problems []string
	label := fmt.Sprintf("%s provider %q", p.Kind, p.Name)
	if !p.HasCredential() {
		problems = append(problems, label+": API key is missing or is a placeholder")
	}
	switch p.Backend {
	case BackendOpenAI, BackendOllama:
		if strings.TrimSpace(p.BaseURL) == "" {
			problems = append(problems, label+": base URL is empty")
		}
	case BackendGemini, BackendAnthropic:
	default:
		problems = append(problems, fmt.Sprintf("%s: unknown backend %q", label, p.Backend))
	}
	if strings.TrimSpace(p.Model) == "" {
		problems = append(problems, label+": model is empty")
	}
	if p.MaxTokens <= 0 {
		problems = append(problems, label+": max tokens must be positive")
	}
	if p.Temperature <= 0 {
		problems = append(problems, label+": temperature must be positive")
	}
	if p.Timeout <= 0 {
		problems = append(problems, label+": timeout must be positive")
	}
	return problems
}

// IsUsable - провайдер можно вызывать.
func (p ProviderConfig) IsUsable() bool {
	return len(p.Problems()) == 0
}

// Возрастные категории для таблиц шаблонов и стилей.
const (
	AgeCategoryYoung  = "young"
	AgeCategoryMiddle = "middle"
	AgeCategoryOlder  = "older"
)

// SupportedAgeGroups - возрастные группы, для которых есть бюджеты.
var SupportedAgeGroups = []string{models.AgeGroup4to6, models.AgeGroup7to9, models.AgeGroup10to12}

var baseWordBudgets = map[string]int{
	models.AgeGroup4to6:   120,
	models.AgeGroup7to9:   200,
	models.AgeGroup10to12: 300,
}

const (
	defaultBaseWords = 200
	tokensPerWord    = 1.4
	// structuralOverhead покрывает JSON-обертку и три варианта выбора.
	structuralOverhead = 250
)

// NormalizeAgeGroup приводит произвольную запись возраста ("7 - 9", "8", "10-12 years")
// к одной из поддерживаемых групп. Нераспознанное значение считается "7-9".
func NormalizeAgeGroup(age string) string {
	a := strings.ReplaceAll(strings.TrimSpace(age), " ", "")
	if _, ok := baseWordBudgets[a]; ok {
		return a
	}
	digits := strings.FieldsFunc(a, func(r rune) bool { return r < '0' || r > '9' })
	if len(digits) == 0 {
		return models.AgeGroup7to9
	}
	n, err := strconv.Atoi(digits[0])
	if err != nil {
		return models.AgeGroup7to9
	}
	switch {
	case n <= 6:
		return models.AgeGroup4to6
	case n <= 9:
		return models.AgeGroup7to9
	default:
		return models.AgeGroup10to12
	}
}

// AgeCategory возвращает young/middle/older для возрастной группы.
func AgeCategory(age string) string {
	switch NormalizeAgeGroup(age) {
	case models.AgeGroup4to6:
		return AgeCategoryYoung
	case models.AgeGroup10to12:
		return AgeCategoryOlder
	default:
		return AgeCategoryMiddle
	}
}

// BaseWordBudget - ожидаемая длина прозы сегмента в словах.
func BaseWordBudget(age string) int {
	if words, ok := baseWordBudgets[NormalizeAgeGroup(age)]; ok {
		return words
	}
	return defaultBaseWords
}

// TokenBudget - лимит токенов ответа: проза плюс фиксированный запас на структуру.
func TokenBudget(age string) int {
	return int(math.Ceil(float64(BaseWordBudget(age))*tokensPerWord)) + structuralOverhead
}

// NormalizeGenre сводит синонимы жанров к ключам таблиц.
func NormalizeGenre(genre string) string {
	g := strings.ToLower(strings.TrimSpace(genre))
	g = strings.NewReplacer("_", "-", " ", "-").Replace(g)
	switch g {
	case "science-fiction", "scifi", "sci-fi", "space":
		return "sci-fi"
	case "funny", "comedy", "humor", "humour", "humorous":
		return "humorous"
	case "bedtime", "bedtime-story", "sleepy":
		return "bedtime"
	case "learning", "education", "educational":
		return "educational"
	case "detective", "mystery":
		return "mystery"
	case "magic", "fairy-tale", "fairytale", "fantasy":
		return "fantasy"
	case "adventure", "action":
		return "adventure"
	}
	return g
}

var artStyles = map[string]map[string]string{
	"adventure": {
		AgeCategoryYoung:  "bright cartoon style with bold outlines and cheerful colors",
		AgeCategoryMiddle: "vibrant adventure comic style with lively motion",
		AgeCategoryOlder:  "dynamic painterly adventure illustration",
	},
	"fantasy": {
		AgeCategoryYoung:  "soft watercolor fairy-tale style",
		AgeCategoryMiddle: "whimsical storybook fantasy art with glowing light",
		AgeCategoryOlder:  "detailed fantasy illustration with rich lighting",
	},
	"educational": {
		AgeCategoryYoung:  "friendly flat illustration with clear simple shapes",
		AgeCategoryMiddle: "clean picture-book style with clear details",
		AgeCategoryOlder:  "detailed semi-realistic illustration",
	},
	"bedtime": {
		AgeCategoryYoung:  "gentle pastel illustration with soft rounded edges",
		AgeCategoryMiddle: "dreamy pastel storybook style",
		AgeCategoryOlder:  "calm moonlit watercolor style",
	},
	"humorous": {
		AgeCategoryYoung:  "playful cartoon style with big expressive faces",
		AgeCategoryMiddle: "zany comic-book style with exaggerated expressions",
		AgeCategoryOlder:  "witty cartoon illustration with expressive characters",
	},
	"mystery": {
		AgeCategoryYoung:  "cozy picture-book style with soft friendly shadows",
		AgeCategoryMiddle: "atmospheric storybook style with muted colors",
		AgeCategoryOlder:  "moody graphic-novel style suitable for children",
	},
	"sci-fi": {
		AgeCategoryYoung:  "colorful rounded sci-fi cartoon style",
		AgeCategoryMiddle: "bright retro-futuristic illustration",
		AgeCategoryOlder:  "sleek sci-fi concept illustration",
	},
}

// DefaultArtStyle используется для жанров вне таблицы.
const DefaultArtStyle = "colorful children's book illustration style"

// ArtStyle возвращает описание художественного стиля для жанра и возраста.
func ArtStyle(genre, age string) string {
	byAge, ok := artStyles[NormalizeGenre(genre)]
	if !ok {
		return DefaultArtStyle
	}
	if style, ok := byAge[AgeCategory(age)]; ok {
		return style
	}
	return DefaultArtStyle
}
