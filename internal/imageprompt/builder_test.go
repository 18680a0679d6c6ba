package imageprompt

import (
	"strings"
	"testing"

	"fairytale-server/internal/config"
	"fairytale-server/shared/models"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestExtractSetting_PriorityOrder(t *testing.T) {
	tests := map[string]string{
		"Mia hid under her bed in the forest cabin.":     "a cozy bedroom",
		"The class visited the school garden.":           "a bright classroom",
		"The lab experiment bubbled over.":               "a colorful science laboratory",
		"They walked into the dark cave by the sea.":     "a glowing cave",
		"The forest was near the castle.":                "an enchanted forest",
		"Waves crashed on the beach.":                    "a sparkling seaside",
		"The rocket zoomed to a purple planet.":          "outer space among the stars",
		"Nothing in particular happened.":                DefaultSetting,
		"The castle in the kingdom had a tall flagpole.": "a grand castle",
	}
	for text, want := range tests {
		assert.Equal(t, want, ExtractSetting(text, nil), text)
	}
}

func TestExtractSetting_UsesPreviousSegments(t *testing.T) {
	prev := []models.Segment{
		{Content: "They sailed across the ocean."},
		{Content: "They reached an old castle."},
	}
	assert.Equal(t, "a grand castle", ExtractSetting("Everyone cheered.", prev))
	assert.Equal(t, "a warm kitchen", ExtractSetting("Cookies cooled in the kitchen.", prev))
}

func TestExtractAtmosphere(t *testing.T) {
	assert.Equal(t, "mysterious and intriguing", ExtractAtmosphere("A secret whisper came from the shadows."))
	assert.Equal(t, "bright and cheerful", ExtractAtmosphere("The sun rose over the hills."))
	assert.Equal(t, "magical and enchanting", ExtractAtmosphere("The stone began to glow."))
	assert.Equal(t, "exciting and adventurous", ExtractAtmosphere("Their journey began."))
	assert.Equal(t, "calm and peaceful", ExtractAtmosphere("It was quiet."))
	assert.Equal(t, "dramatic and suspenseful", ExtractAtmosphere("A storm rolled in."))
	assert.Equal(t, DefaultAtmosphere, ExtractAtmosphere("Tom ate an apple."))
}

func TestExtractObjects_AtMostTwo(t *testing.T) {
	objs := ExtractObjects("She held a key, a map, a book and a wand.")
	assert.Equal(t, []string{"a shiny key", "an old map"}, objs)
	assert.Empty(t, ExtractObjects("Nothing to hold."))
}

func TestExtractCharacterNames(t *testing.T) {
	names := ExtractCharacterNames("Once upon a time, Mia met Captain Whiskers. Then Mia smiled. The End.")
	assert.Equal(t, []string{"Captain Whiskers", "Mia", "End"}, names)
	assert.Empty(t, ExtractCharacterNames("she ran. They laughed."))
}

func TestBuildImagePrompt_Composition(t *testing.T) {
	story := &models.Story{StoryMode: "fantasy", AgeGroup: "4-6"}
	known := []models.Character{
		{Name: "Luna", Description: "a curious fox", Role: models.RoleProtagonist, Appearance: strPtr("a small orange fox with a blue scarf")},
	}
	text := "Luna found a magic wand glowing in the enchanted forest and flew over the trees."

	p := BuildImagePrompt(story, text, nil, known)

	assert.True(t, strings.HasPrefix(p, "A magical and enchanting scene in an enchanted forest, showing Luna (a small orange fox with a blue scarf) flying through the air with a magic wand."), p)
	assert.Contains(t, p, "Art style: "+config.ArtStyle("fantasy", "4-6"))
	assert.Contains(t, p, ageQuality["young"])
	assert.True(t, strings.HasSuffix(p, NegativePrompt))
}

func TestBuildImagePrompt_Defaults(t *testing.T) {
	p := BuildImagePrompt(nil, "it was a day.", nil, nil)
	assert.Contains(t, p, "A warm and inviting scene in a mysterious place, showing a young hero looking around with wonder.")
	assert.Contains(t, p, config.DefaultArtStyle)
	assert.Contains(t, p, NegativePrompt)
}

func TestBuildImagePrompt_OlderBandIsMoreDetailed(t *testing.T) {
	young := BuildImagePrompt(&models.Story{StoryMode: "adventure", AgeGroup: "4-6"}, "Sam ran.", nil, nil)
	older := BuildImagePrompt(&models.Story{StoryMode: "adventure", AgeGroup: "10-12"}, "Sam ran.", nil, nil)
	assert.Contains(t, young, "bold clean lines")
	assert.Contains(t, older, "detailed environments")
	assert.Contains(t, older, "showing Sam running with excitement")
}

func TestBuildImagePrompt_ProtagonistWhenNoNames(t *testing.T) {
	known := []models.Character{
		{Name: "Bram", Description: "a grumpy owl", Role: models.RoleMentor},
		{Name: "Pip", Description: "a tiny mouse", Role: models.RoleProtagonist},
	}
	p := BuildImagePrompt(&models.Story{}, "the wind blew softly.", nil, known)
	assert.Contains(t, p, "showing Pip (a tiny mouse)")
}

func TestNeedsCharacterConsistency(t *testing.T) {
	assert.True(t, NeedsCharacterConsistency("She opened the gate.", ""))
	assert.True(t, NeedsCharacterConsistency("", "a portrait of the hero"))
	assert.True(t, NeedsCharacterConsistency("Tom laughed.", ""))
	assert.True(t, NeedsCharacterConsistency("A girl named Zoe.", ""))
	assert.False(t, NeedsCharacterConsistency("Rain fell on the empty meadow.", "a calm meadow at dawn"))
}

func TestExtractMainCharacter(t *testing.T) {
	assert.Equal(t, "Mia", ExtractMainCharacter("The sun rose. Mia woke up."))
	assert.Equal(t, "Captain", ExtractMainCharacter("Then Captain Whiskers sailed."))
	assert.Equal(t, DefaultMainCharacter, ExtractMainCharacter("the end. It is over. Al ok."))
	assert.Equal(t, DefaultMainCharacter, ExtractMainCharacter(""))
}

func TestBuildImagePrompt_KnownNameMatchesWholeWordsOnly(t *testing.T) {
	known := []models.Character{
		{Name: "Al", Description: "a small robot", Role: models.RoleSupporting},
		{Name: "Max", Description: "a red fox", Role: models.RoleSupporting},
		{Name: "Pip", Description: "a tiny mouse", Role: models.RoleProtagonist},
	}
	p := BuildImagePrompt(&models.Story{}, "all the kites flew to the maximum height.", nil, known)
	assert.Contains(t, p, "showing Pip (a tiny mouse)")

	p = BuildImagePrompt(&models.Story{}, "then max waved at everyone.", nil, known)
	assert.Contains(t, p, "showing Max (a red fox)")
}

func TestMentionsName(t *testing.T) {
	assert.True(t, mentionsName("Al smiled.", "Al"))
	assert.True(t, mentionsName("Hello, al!", "Al"))
	assert.True(t, mentionsName("Вдруг Мила засмеялась.", "Мила"))
	assert.True(t, mentionsName("Captain Whiskers sailed.", "Captain Whiskers"))
	assert.False(t, mentionsName("They all smiled.", "Al"))
	assert.False(t, mentionsName("Maxine sang.", "Max"))
	assert.False(t, mentionsName("Милана пела.", "Мила"))
	assert.False(t, mentionsName("Anything", "  "))
}
