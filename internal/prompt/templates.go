package prompt

import "fairytale-server/internal/config"

// Базовые шаблоны по жанру и возрастной категории. Каждый шаблон обязан
// содержать {theme}, {setting}, {characters}, {word_count} и {complexity}.
var baseTemplates = map[string]map[string]string{
	"adventure": {
		config.AgeCategoryYoung:  "Write a cheerful little adventure for young children (ages 4-6) about {theme}, set in {setting}, starring {characters}.",
		config.AgeCategoryMiddle: "Write an exciting adventure story segment for children aged 7-9 about {theme}, set in {setting}, starring {characters}.",
		config.AgeCategoryOlder:  "Write a thrilling adventure story segment for readers aged 10-12 about {theme}, set in {setting}, starring {characters}.",
	},
	"fantasy": {
		config.AgeCategoryYoung:  "Write a gentle, magical fairy tale for young children (ages 4-6) about {theme}, set in {setting}, featuring {characters}.",
		config.AgeCategoryMiddle: "Write an enchanting fantasy story segment for children aged 7-9 about {theme}, set in {setting}, featuring {characters}.",
		config.AgeCategoryOlder:  "Write an imaginative fantasy story segment for readers aged 10-12 about {theme}, set in {setting}, featuring {characters}.",
	},
	"educational": {
		config.AgeCategoryYoung:  "Write a playful learning story for young children (ages 4-6) that explores {theme} in {setting}, with {characters}.",
		config.AgeCategoryMiddle: "Write a curious, fact-filled story segment for children aged 7-9 that explores {theme} in {setting}, with {characters}.",
		config.AgeCategoryOlder:  "Write an engaging story segment for readers aged 10-12 that teaches about {theme} in {setting}, with {characters}.",
	},
	"bedtime": {
		config.AgeCategoryYoung:  "Write a soft, soothing bedtime story for young children (ages 4-6) about {theme}, set in {setting}, with {characters}.",
		config.AgeCategoryMiddle: "Write a calm and cozy bedtime story segment for children aged 7-9 about {theme}, set in {setting}, with {characters}.",
		config.AgeCategoryOlder:  "Write a peaceful, reflective bedtime story segment for readers aged 10-12 about {theme}, set in {setting}, with {characters}.",
	},
	"humorous": {
		config.AgeCategoryYoung:  "Write a silly, giggly story for young children (ages 4-6) about {theme}, set in {setting}, starring {characters}.",
		config.AgeCategoryMiddle: "Write a funny story segment for children aged 7-9 about {theme}, set in {setting}, starring {characters}.",
		config.AgeCategoryOlder:  "Write a witty, humorous story segment for readers aged 10-12 about {theme}, set in {setting}, starring {characters}.",
	},
	"mystery": {
		config.AgeCategoryYoung:  "Write a tiny, friendly mystery for young children (ages 4-6) about {theme}, set in {setting}, with {characters}.",
		config.AgeCategoryMiddle: "Write an intriguing mystery story segment for children aged 7-9 about {theme}, set in {setting}, with {characters}.",
		config.AgeCategoryOlder:  "Write a clever mystery story segment for readers aged 10-12 about {theme}, set in {setting}, with {characters}.",
	},
	"sci-fi": {
		config.AgeCategoryYoung:  "Write a bright space-and-robots story for young children (ages 4-6) about {theme}, set in {setting}, with {characters}.",
		config.AgeCategoryMiddle: "Write a fun science-fiction story segment for children aged 7-9 about {theme}, set in {setting}, with {characters}.",
		config.AgeCategoryOlder:  "Write an inventive science-fiction story segment for readers aged 10-12 about {theme}, set in {setting}, with {characters}.",
	},
}

const defaultTemplate = "Write an engaging children's story segment about {theme}, set in {setting}, featuring {characters}."

const constraintsTemplate = `

Writing requirements:
- Length: about {word_count} words.
- Language: {complexity}.
- Keep everything kind, safe and age-appropriate.
- End at a moment where the reader must decide what happens next.`

// genreGuidance - жанровые указания по возрастной категории.
var genreGuidance = map[string]map[string]string{
	"adventure": {
		config.AgeCategoryYoung:  "Keep the adventure close to home and cozy; small discoveries feel big.",
		config.AgeCategoryMiddle: "Include a clear goal, a small obstacle and a brave moment.",
		config.AgeCategoryOlder:  "Build tension with a meaningful challenge and let the hero show resourcefulness.",
	},
	"fantasy": {
		config.AgeCategoryYoung:  "Use friendly magical creatures and simple, wonderful magic.",
		config.AgeCategoryMiddle: "Describe the magic with sensory detail and give it simple rules.",
		config.AgeCategoryOlder:  "Develop the magical world with its own logic, history and consequences.",
	},
	"educational": {
		config.AgeCategoryYoung:  "Weave in one simple fact (a color, a number, an animal) naturally.",
		config.AgeCategoryMiddle: "Include two or three accurate facts the characters discover themselves.",
		config.AgeCategoryOlder:  "Explain a real concept accurately through the characters' problem solving.",
	},
	"bedtime": {
		config.AgeCategoryYoung:  "Use a slow, rhythmic pace with soft sounds and a reassuring tone.",
		config.AgeCategoryMiddle: "Keep the conflict gentle and the mood calm and comforting.",
		config.AgeCategoryOlder:  "Favor quiet wonder and reflection over excitement.",
	},
	"humorous": {
		config.AgeCategoryYoung:  "Use silly sounds, funny mix-ups and playful repetition.",
		config.AgeCategoryMiddle: "Include funny situations, wordplay and a character with a quirky habit.",
		config.AgeCategoryOlder:  "Use clever humor, comic timing and light irony, never mean-spirited.",
	},
	"mystery": {
		config.AgeCategoryYoung:  "Make the mystery small and friendly, like a missing toy, with nothing scary.",
		config.AgeCategoryMiddle: "Plant one or two clues the reader can notice.",
		config.AgeCategoryOlder:  "Lay out fair clues and a red herring without revealing the answer yet.",
	},
	"sci-fi": {
		config.AgeCategoryYoung:  "Use friendly robots, shiny rockets and simple wonder about space.",
		config.AgeCategoryMiddle: "Introduce one cool invention or planet with a simple explanation.",
		config.AgeCategoryOlder:  "Explore a science idea and how it changes the characters' world.",
	},
	"default": {
		config.AgeCategoryYoung:  "Keep the story simple, warm and reassuring.",
		config.AgeCategoryMiddle: "Balance fun, curiosity and a small challenge.",
		config.AgeCategoryOlder:  "Give the characters real choices with meaningful consequences.",
	},
}

var ageComplexity = map[string]string{
	config.AgeCategoryYoung:  "very simple words, short sentences, gentle repetition and fun sound words",
	config.AgeCategoryMiddle: "clear everyday vocabulary with some descriptive words and light dialogue",
	config.AgeCategoryOlder:  "varied sentences, vivid descriptions and some age-appropriate challenging words",
}

// Описания сложности по уровню шаблона: <=3, <=6, >6.
const (
	levelComplexityLow  = "very simple vocabulary and short sentences of three to eight words"
	levelComplexityMid  = "simple everyday vocabulary with a few new descriptive words"
	levelComplexityHigh = "richer vocabulary and varied sentence structure, still clear for children"
)

var lengthWordCounts = map[string]int{
	"short":  60,
	"medium": 125,
	"long":   180,
}

const (
	minLevelWords = 30
	maxLevelWords = 200
	minLevel      = 1
	maxLevel      = 10
)

// Значения по умолчанию для подстановок.
const (
	DefaultTheme      = "an adventure"
	DefaultSetting    = "a magical place"
	DefaultCharacters = "a brave main character"
)
