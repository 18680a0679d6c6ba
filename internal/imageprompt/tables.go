package imageprompt

import "regexp"

// phraseRule - строка упорядоченной таблицы "шаблон -> фраза", первое совпадение побеждает.
type phraseRule struct {
	pattern *regexp.Regexp
	phrase  string
}

func rule(pattern, phrase string) phraseRule {
	return phraseRule{pattern: regexp.MustCompile(`(?i)` + pattern), phrase: phrase}
}

func firstMatch(rules []phraseRule, text string) (string, bool) {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.phrase, true
		}
	}
	return "", false
}

// settingRules: конкретные помещения раньше широких природных и сказочных мест.
var settingRules = []phraseRule{
	rule(`bedroom|\bbed\b|pillow`, "a cozy bedroom"),
	rule(`classroom|\bschool|teacher`, "a bright classroom"),
	rule(`laborator|\blab\b|experiment`, "a colorful science laboratory"),
	rule(`kitchen|bakery|\boven\b`, "a warm kitchen"),
	rule(`library|bookshel`, "a quiet library full of books"),
	rule(`\bcaves?\b|cavern|tunnel`, "a glowing cave"),
	rule(`garden|meadow|flower field`, "a blooming garden"),
	rule(`village|\btown\b|market`, "a friendly little village"),
	rule(`forest|\bwoods\b|jungle`, "an enchanted forest"),
	rule(`ocean|\bsea\b|beach|underwater|island`, "a sparkling seaside"),
	rule(`castle|palace|kingdom`, "a grand castle"),
	rule(`\bspace\b|planet|rocket|galaxy|\bstars\b`, "outer space among the stars"),
	rule(`mountain|\bhills?\b|valley`, "rolling mountains"),
	rule(`desert|\bdunes?\b`, "a sunny desert"),
	rule(`\bsky\b|clouds`, "high among the clouds"),
}

// DefaultSetting - если ни текст сегмента, ни предыдущие сегменты не подсказали место.
const DefaultSetting = "mysterious place"

var atmosphereRules = []phraseRule{
	rule(`mysterious|shadow|whisper|secret|\bfog|\bmist`, "mysterious and intriguing"),
	rule(`\bsun|bright|morning|cheerful|rainbow`, "bright and cheerful"),
	rule(`magic|sparkl|\bglow|enchant|fairy`, "magical and enchanting"),
	rule(`adventure|explor|journey|\bquest`, "exciting and adventurous"),
	rule(`quiet|\bcalm|peaceful|gentle|\bsleep`, "calm and peaceful"),
	rule(`storm|thunder|danger|suddenly|\broar`, "dramatic and suspenseful"),
}

// DefaultAtmosphere - настроение по умолчанию.
const DefaultAtmosphere = "warm and inviting"

var actionRules = []phraseRule{
	rule(`\bfl(y|ies|ew|ying)\b`, "flying through the air"),
	rule(`\bsw(im|ims|am|imming)\b`, "swimming happily"),
	rule(`\b(run|runs|ran|running|raced?)\b`, "running with excitement"),
	rule(`\bclimb`, "climbing carefully"),
	rule(`\b(read|reads|reading)\b`, "reading a book"),
	rule(`\bdanc`, "dancing joyfully"),
	rule(`\bjump`, "jumping high"),
	rule(`explor`, "exploring curiously"),
	rule(`\bbuil(d|ds|t|ding)\b`, "building something together"),
	rule(`\b(sing|sings|sang|singing)\b`, "singing a happy song"),
	rule(`discover|\bfound\b|\bfind\b`, "discovering something new"),
	rule(`\bhug`, "sharing a warm hug"),
	rule(`\bsleep|\bnap`, "sleeping peacefully"),
}

// DefaultAction - действие по умолчанию.
const DefaultAction = "looking around with wonder"

var objectRules = []phraseRule{
	rule(`\bkeys?\b`, "a shiny key"),
	rule(`\bmaps?\b`, "an old map"),
	rule(`\bbooks?\b`, "a storybook"),
	rule(`\bwand\b`, "a magic wand"),
	rule(`treasure|\bchest\b`, "a treasure chest"),
	rule(`lantern|\blamp\b`, "a glowing lantern"),
	rule(`\bcrown\b`, "a golden crown"),
	rule(`flower`, "colorful flowers"),
	rule(`balloon`, "bright balloons"),
	rule(`\bboat\b`, "a little boat"),
	rule(`\bkite\b`, "a kite"),
	rule(`\bball\b`, "a bouncy ball"),
	rule(`\bmirror\b`, "a sparkling mirror"),
	rule(`feather`, "a soft feather"),
	rule(`\bshells?\b`, "a seashell"),
}

const maxObjects = 2

// ageQuality - модификаторы качества иллюстрации по возрастной категории.
var ageQuality = map[string]string{
	"young":  "simple rounded shapes, bold clean lines, bright primary colors, friendly faces",
	"middle": "clear shapes with moderate detail, vibrant colors, expressive characters",
	"older":  "detailed environments, dynamic composition, rich colors and lighting",
}

const qualitySuffix = "children's book illustration, high quality, storybook art"

// NegativePrompt добавляется к каждому промпту без изменений.
const NegativePrompt = "Negative prompt: no scary imagery, no violence, no weapons, no blood, no adult content, " +
	"no text, no watermarks, no low quality, no blurry or distorted features."

// commonCapitalized - слова, которые пишутся с заглавной буквы, но не являются именами.
var commonCapitalized = map[string]struct{}{
	"The": {}, "A": {}, "An": {}, "And": {}, "But": {}, "Or": {}, "So": {}, "Then": {}, "When": {},
	"While": {}, "After": {}, "Before": {}, "Once": {}, "Upon": {}, "Suddenly": {}, "Finally": {},
	"She": {}, "He": {}, "They": {}, "It": {}, "We": {}, "I": {}, "You": {}, "Her": {}, "His": {},
	"Their": {}, "Its": {}, "Our": {}, "My": {}, "Your": {}, "This": {}, "That": {}, "These": {},
	"Those": {}, "There": {}, "Here": {}, "What": {}, "Who": {}, "Where": {}, "Why": {}, "How": {},
	"Yes": {}, "No": {}, "Oh": {}, "Wow": {}, "Soon": {}, "Now": {}, "Just": {}, "As": {}, "In": {},
	"On": {}, "At": {}, "With": {}, "Into": {}, "Out": {}, "Up": {}, "Down": {}, "Maybe": {},
	"Even": {}, "Still": {}, "Every": {}, "Each": {}, "One": {}, "Some": {}, "All": {}, "If": {},
	"Let": {}, "Look": {}, "Come": {}, "Together": {}, "Inside": {}, "Outside": {}, "Behind": {},
	"Under": {}, "Deep": {}, "Far": {}, "Long": {}, "Later": {}, "Meanwhile": {}, "Everyone": {},
	"Nobody": {}, "Someone": {}, "Something": {}, "Chapter": {}, "Mom": {}, "Dad": {},
}

func isCommonCapitalized(word string) bool {
	_, ok := commonCapitalized[word]
	return ok
}
