package models

// Нарративные роли персонажей.
const (
	RoleProtagonist = "protagonist"
	RoleAntagonist  = "antagonist"
	RoleSupporting  = "supporting"
	RoleMentor      = "mentor"
)

// NarrativeRoles - роли, которые учитываются при выборке персонажей.
var NarrativeRoles = []string{RoleProtagonist, RoleAntagonist, RoleSupporting, RoleMentor}

// Character - персонаж пользователя или шаблона.
type Character struct {
	ID          string  `db:"id" json:"id,omitempty" bson:"_id,omitempty"`
	UserID      string  `db:"user_id" json:"user_id,omitempty" bson:"user_id,omitempty"`
	StoryID     *string `db:"story_id" json:"story_id,omitempty" bson:"story_id,omitempty"`
	Name        string  `db:"name" json:"name" bson:"name"`
	Description string  `db:"description" json:"description" bson:"description"`
	Role        string  `db:"role" json:"role" bson:"role"`
	Personality *string `db:"personality" json:"personality,omitempty" bson:"personality,omitempty"`
	Appearance  *string `db:"appearance" json:"appearance,omitempty" bson:"appearance,omitempty"`
}

// TemplateCharacter - персонаж из контекста шаблона, присланного клиентом.
type TemplateCharacter struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=500"`
	Role        string `json:"role" validate:"omitempty,oneof=protagonist antagonist supporting mentor"`
	Personality string `json:"personality,omitempty" validate:"max=300"`
	Appearance  string `json:"appearance,omitempty" validate:"max=300"`
}

// TemplateContext - необязательные переопределения из шаблона маркетплейса.
type TemplateContext struct {
	Theme       string              `json:"theme,omitempty" validate:"max=200"`
	Setting     string              `json:"setting,omitempty" validate:"max=200"`
	Conflict    string              `json:"conflict,omitempty" validate:"max=500"`
	Quest       string              `json:"quest,omitempty" validate:"max=500"`
	MoralLesson string              `json:"moralLesson,omitempty" validate:"max=300"`
	Atmosphere  string              `json:"atmosphere,omitempty" validate:"max=200"`
	Characters  []TemplateCharacter `json:"characters,omitempty" validate:"max=10,dive"`
}

// IsEmpty сообщает, что контекст не содержит ни одного значения.
func (t *TemplateContext) IsEmpty() bool {
	if t == nil {
		return true
	}
	return t.Theme == "" && t.Setting == "" && t.Conflict == "" && t.Quest == "" &&
		t.MoralLesson == "" && t.Atmosphere == "" && len(t.Characters) == 0
}
