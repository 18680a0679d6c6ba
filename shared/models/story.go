package models

import "time"

// Возрастные группы читателей.
const (
	AgeGroup4to6   = "4-6"
	AgeGroup7to9   = "7-9"
	AgeGroup10to12 = "10-12"
)

// Длина истории, если у истории нет уровня шаблона.
const (
	StoryLengthShort  = "short"
	StoryLengthMedium = "medium"
	StoryLengthLong   = "long"
)

// Story - ветвящаяся история одного пользователя. Пайплайн ее только читает.
type Story struct {
	ID            string    `db:"id" json:"id" bson:"_id"`
	UserID        string    `db:"user_id" json:"user_id" bson:"user_id"`
	Title         string    `db:"title" json:"title" bson:"title"`
	Description   string    `db:"description" json:"description" bson:"description"`
	StoryMode     string    `db:"story_mode" json:"story_mode" bson:"story_mode"` // тег жанра
	AgeGroup      string    `db:"age_group" json:"age_group" bson:"age_group"`
	Theme         *string   `db:"theme" json:"theme,omitempty" bson:"theme,omitempty"`
	Setting       *string   `db:"setting" json:"setting,omitempty" bson:"setting,omitempty"`
	Conflict      *string   `db:"conflict" json:"conflict,omitempty" bson:"conflict,omitempty"`
	Quest         *string   `db:"quest" json:"quest,omitempty" bson:"quest,omitempty"`
	MoralLesson   *string   `db:"moral_lesson" json:"moral_lesson,omitempty" bson:"moral_lesson,omitempty"`
	Atmosphere    *string   `db:"atmosphere" json:"atmosphere,omitempty" bson:"atmosphere,omitempty"`
	TemplateLevel *int      `db:"template_level" json:"template_level,omitempty" bson:"template_level,omitempty"`
	StoryLength   string    `db:"story_length" json:"story_length" bson:"story_length"`
	CreatedAt     time.Time `db:"created_at" json:"created_at" bson:"created_at"`
}

// Genre возвращает тег жанра для выбора шаблона и стиля иллюстрации.
func (s *Story) Genre() string {
	return s.StoryMode
}

// Segment - узел дерева истории: текст и ровно три варианта выбора
// (или ни одного для концовки).
type Segment struct {
	ID              string    `db:"id" json:"id" bson:"_id"`
	StoryID         string    `db:"story_id" json:"story_id" bson:"story_id"`
	Content         string    `db:"content" json:"content" bson:"content"`
	Position        int       `db:"position" json:"position" bson:"position"`
	Choices         []Choice  `db:"choices" json:"choices" bson:"choices"`
	ImagePrompt     *string   `db:"image_prompt" json:"image_prompt,omitempty" bson:"image_prompt,omitempty"`
	ImageURL        *string   `db:"image_url" json:"image_url,omitempty" bson:"image_url,omitempty"`
	ParentSegmentID *string   `db:"parent_segment_id" json:"parent_segment_id,omitempty" bson:"parent_segment_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at" bson:"created_at"`
}

// Choice - короткий вариант продолжения.
type Choice struct {
	ID            string  `json:"id" bson:"id"`
	Text          string  `json:"text" bson:"text"`
	NextSegmentID *string `json:"next_segment_id" bson:"next_segment_id"`
}
