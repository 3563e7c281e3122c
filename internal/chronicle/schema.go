package chronicle

import (
	"encoding/json"
	"sync"
)

// Границы числа трофеев в ответе.
const (
	MinTrophies = 2
	MaxTrophies = 6
)

// StorySchemaName - имя схемы ответа для response_format.json_schema.
const StorySchemaName = "chapter_story"

var (
	storySchemaOnce sync.Once
	storySchemaJSON json.RawMessage
)

// StoryResponseSchema возвращает строгую JSON Schema ответа генерации.
// Все объекты закрыты (additionalProperties: false), все поля обязательны.
func StoryResponseSchema() json.RawMessage {
	storySchemaOnce.Do(func() {
		data, err := json.Marshal(storySchemaObject())
		if err != nil {
			panic("chapter story schema is not serializable: " + err.Error())
		}
		storySchemaJSON = data
	})
	return storySchemaJSON
}

func storySchemaObject() map[string]interface{} {
	str := func(description string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": description}
	}
	return map[string]interface{}{
		"type":                 "object",
		"description":          "Narrative chronicle of a completed chapter.",
		"additionalProperties": false,
		"required":             []string{"title", "summary", "scenes", "trophies", "mj_verdict"},
		"properties": map[string]interface{}{
			"title":   str("Short chapter title."),
			"summary": str("Recap of the chapter in 2-4 sentences."),
			"scenes": map[string]interface{}{
				"type":        "array",
				"description": "One scene per completed quest, in order_hint order.",
				"items": map[string]interface{}{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"quest_id", "quest_title", "location_code", "scene"},
					"properties": map[string]interface{}{
						"quest_id":      str("quest_id copied from the payload."),
						"quest_title":   str("Quest title copied from the payload."),
						"location_code": str("Room code of the quest, empty when unknown."),
						"scene":         str("Narrated scene text."),
					},
				},
			},
			"trophies": map[string]interface{}{
				"type":     "array",
				"minItems": MinTrophies,
				"maxItems": MaxTrophies,
				"items": map[string]interface{}{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"title", "description"},
					"properties": map[string]interface{}{
						"title":       str("Short trophy title."),
						"description": str("One-sentence trophy description."),
					},
				},
			},
			"mj_verdict": str("One-sentence closing verdict of the game master."),
		},
	}
}
