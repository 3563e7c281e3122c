package models

// NarratorPersona - персонаж-рассказчик, выбранный игроком.
// Все поля опциональны.
type NarratorPersona struct {
	Name            *string `db:"persona_name" json:"name,omitempty"`
	Emoji           *string `db:"persona_emoji" json:"emoji,omitempty"`
	Archetype       *string `db:"persona_archetype" json:"archetype,omitempty"`
	Tone            *string `db:"persona_tone" json:"tone,omitempty"`
	Verbosity       *string `db:"persona_verbosity" json:"verbosity,omitempty"`
	SignaturePhrase *string `db:"persona_signature_phrase" json:"signature_phrase,omitempty"`
}

// StyleProfile - нарративный профиль игрока.
type StyleProfile struct {
	UserID      string          `db:"user_id" json:"user_id"`
	DisplayName *string         `db:"display_name" json:"display_name,omitempty"`
	Persona     NarratorPersona `json:"persona"`
}
