package choices

import "regexp"

// fallbackRule - строка упорядоченной таблицы: первое совпадение побеждает.
type fallbackRule struct {
	name    string
	pattern *regexp.Regexp
	choices [3]string
}

// contextualRules проверяются по тексту сегмента сверху вниз.
// Правило door/locked ищет подстроки, остальные - слова.
var contextualRules = []fallbackRule{
	{"door", regexp.MustCompile(`(?i)door|locked`),
		[3]string{"Try to open the door", "Look for a key", "Find another way around"}},
	{"magic", regexp.MustCompile(`(?i)magic|\bspells?\b|\bwand\b|enchant`),
		[3]string{"Use the magic carefully", "Learn more about the magic", "Ask a wise friend about the spell"}},
	{"forest", regexp.MustCompile(`(?i)forest|\bwoods\b|\btrees?\b`),
		[3]string{"Explore deeper into the forest", "Follow the winding forest path", "Listen to the forest sounds"}},
	{"castle", regexp.MustCompile(`(?i)castle|palace|\btowers?\b`),
		[3]string{"Enter the castle gates", "Climb the tall castle tower", "Search the castle halls"}},
	{"creature", regexp.MustCompile(`(?i)dragon|monster|\btroll|\bgiant\b|\bbeast`),
		[3]string{"Talk to the creature kindly", "Hide and watch quietly", "Look for a brave friend"}},
	{"treasure", regexp.MustCompile(`(?i)treasure|\bchest\b|\bjewels?\b|gold coins`),
		[3]string{"Open the treasure chest", "Count the shiny treasure", "Share the treasure with friends"}},
	{"friendship", regexp.MustCompile(`(?i)friend`),
		[3]string{"Help your new friend", "Play a game together", "Share a kind secret"}},
	{"water", regexp.MustCompile(`(?i)\b(water|river|ocean|lake|sea|pond|stream)s?\b`),
		[3]string{"Swim across the water", "Build a little boat", "Follow the river downstream"}},
	{"mountain", regexp.MustCompile(`(?i)mountain|\bcliffs?\b|\bpeak\b|\bhills?\b`),
		[3]string{"Climb up the mountain", "Look for a mountain cave", "Rest and enjoy the view"}},
	{"book", regexp.MustCompile(`(?i)\bbooks?\b|storybook|library`),
		[3]string{"Read the mysterious book", "Turn to the next page", "Ask about the book's secret"}},
	{"lost", regexp.MustCompile(`(?i)\blost\b|confused|which way`),
		[3]string{"Ask someone for directions", "Look for familiar landmarks", "Stay calm and think"}},
}

// actionRules срабатывают, если ни один сценарий не подошел.
var actionRules = []fallbackRule{
	{"walk", regexp.MustCompile(`(?i)\b(walk|walks|walked|walking|go|goes|going|went)\b`),
		[3]string{"Keep walking forward", "Take a different path", "Stop and look around"}},
	{"look", regexp.MustCompile(`(?i)\b(see|sees|saw|seeing|look|looks|looked|looking|notice|noticed)\b`),
		[3]string{"Take a closer look", "Look for more clues", "Point out what you see"}},
	{"sound", regexp.MustCompile(`(?i)\b(hear|hears|heard|hearing|sound|sounds|noise|noises|listen|listened)\b`),
		[3]string{"Follow the sound", "Listen very carefully", "Call out hello"}},
}

// GenericChoices - последний уровень, когда текст ни о чем не говорит.
var GenericChoices = [3]string{"Continue the adventure", "Be brave and explore", "Think carefully first"}

// GenerateContextualFallbacks возвращает три варианта по ключевым словам сегмента.
func GenerateContextualFallbacks(storyText string) []string {
	_, choices := matchFallback(storyText)
	return choices[:]
}

// matchFallback возвращает имя сработавшего правила ("generic", если ни одно).
func matchFallback(storyText string) (string, [3]string) {
	for _, rules := range [][]fallbackRule{contextualRules, actionRules} {
		for _, r := range rules {
			if r.pattern.MatchString(storyText) {
				return r.name, r.choices
			}
		}
	}
	return "generic", GenericChoices
}
