package chronicle

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"chronicle-server/internal/models"
)

// MaxSnippetRunes - длина фрагмента ответа в ValidationError.
const MaxSnippetRunes = 200

// ParseStory строго разбирает ответ генерации: неизвестные поля, лишние данные
// после объекта и пустые обязательные поля дают *models.ValidationError.
func ParseStory(raw string) (*models.StructuredStory, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, newValidationError(raw, "empty response")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()

	var story models.StructuredStory
	if err := dec.Decode(&story); err != nil {
		return nil, newValidationError(raw, err.Error())
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, newValidationError(raw, "unexpected data after JSON object")
	}

	if reason := checkStoryShape(&story); reason != "" {
		return nil, newValidationError(raw, reason)
	}
	if story.Scenes == nil {
		story.Scenes = []models.StoryScene{}
	}
	return &story, nil
}

func checkStoryShape(story *models.StructuredStory) string {
	switch {
	case strings.TrimSpace(story.Title) == "":
		return "title is empty"
	case strings.TrimSpace(story.Summary) == "":
		return "summary is empty"
	case strings.TrimSpace(story.MJVerdict) == "":
		return "mj_verdict is empty"
	case len(story.Trophies) < MinTrophies || len(story.Trophies) > MaxTrophies:
		return fmt.Sprintf("expected %d-%d trophies, got %d", MinTrophies, MaxTrophies, len(story.Trophies))
	}
	for i, scene := range story.Scenes {
		if strings.TrimSpace(scene.QuestID) == "" || strings.TrimSpace(scene.QuestTitle) == "" || strings.TrimSpace(scene.Scene) == "" {
			return fmt.Sprintf("scene %d is missing quest_id, quest_title or scene", i)
		}
	}
	for i, trophy := range story.Trophies {
		if strings.TrimSpace(trophy.Title) == "" || strings.TrimSpace(trophy.Description) == "" {
			return fmt.Sprintf("trophy %d is missing title or description", i)
		}
	}
	return ""
}

// ValidateStory разбирает ответ и сверяет сцены с квестами пейлоада: по одной сцене
// на каждый квест, без повторов и чужих quest_id. Сцены возвращаются в порядке order_hint.
func ValidateStory(raw string, quests []models.StoryQuestSummary) (*models.StructuredStory, error) {
	story, err := ParseStory(raw)
	if err != nil {
		return nil, err
	}
	if reason := checkSceneCoverage(story.Scenes, quests); reason != "" {
		return nil, newValidationError(raw, reason)
	}
	AlignScenes(story, quests)
	return story, nil
}

func checkSceneCoverage(scenes []models.StoryScene, quests []models.StoryQuestSummary) string {
	if len(scenes) != len(quests) {
		return fmt.Sprintf("expected %d scenes, one per quest, got %d", len(quests), len(scenes))
	}
	expected := make(map[string]bool, len(quests))
	for _, q := range quests {
		expected[q.QuestID] = false
	}
	for i, scene := range scenes {
		seen, ok := expected[scene.QuestID]
		switch {
		case !ok:
			return fmt.Sprintf("scene %d references unknown quest_id %q", i, scene.QuestID)
		case seen:
			return fmt.Sprintf("scene %d repeats quest_id %q", i, scene.QuestID)
		}
		expected[scene.QuestID] = true
	}
	return ""
}

// AlignScenes упорядочивает сцены по order_hint квестов из пейлоада.
// Состав сцен должен быть уже проверен ValidateStory.
func AlignScenes(story *models.StructuredStory, quests []models.StoryQuestSummary) {
	position := make(map[string]int, len(quests))
	for _, q := range quests {
		position[q.QuestID] = q.OrderHint
	}
	sort.SliceStable(story.Scenes, func(i, j int) bool {
		return position[story.Scenes[i].QuestID] < position[story.Scenes[j].QuestID]
	})
}

func newValidationError(raw, reason string) *models.ValidationError {
	return &models.ValidationError{Snippet: Snippet(raw, MaxSnippetRunes), Reason: reason}
}

// Snippet обрезает s до limit рун, добавляя многоточие.
func Snippet(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}

// stripCodeFence снимает markdown-обертку ```json ... ```, которую иногда добавляют модели.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
