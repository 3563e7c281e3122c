package models

import (
	"encoding/json"
	"time"
)

// StoryChapterContext - метаданные главы внутри StoryContext.
type StoryChapterContext struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Pacing    ChapterPacing `json:"pacing"`
	Context   *string       `json:"context"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// StoryAdventureContext - метаданные приключения внутри StoryContext.
type StoryAdventureContext struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Code    string  `json:"code"`
	Context *string `json:"context"`
}

// StoryQuestSummary - краткое описание выполненного квеста для генерации.
// OrderHint соответствует позиции сцены в ответе.
type StoryQuestSummary struct {
	OrderHint        int       `json:"order_hint"`
	QuestID          string    `json:"quest_id"`
	Title            string    `json:"title"`
	RoomCode         *string   `json:"room_code"`
	Difficulty       *string   `json:"difficulty"`
	EstimatedMinutes *int      `json:"estimated_minutes"`
	CompletedAt      time.Time `json:"completed_at"`
}

// StoryContext - полный JSON-пейлоад, отправляемый на генерацию.
// Создаётся заново на каждый вызов.
type StoryContext struct {
	Chapter   StoryChapterContext    `json:"chapter"`
	Adventure *StoryAdventureContext `json:"adventure"`
	Quests    []StoryQuestSummary    `json:"quests"`
}

// StoryScene - одна сцена истории, по одной на выполненный квест.
type StoryScene struct {
	QuestID      string `json:"quest_id"`
	QuestTitle   string `json:"quest_title"`
	LocationCode string `json:"location_code"`
	Scene        string `json:"scene"`
}

// StoryTrophy - трофей главы.
type StoryTrophy struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// StructuredStory - провалидированный ответ генерации.
type StructuredStory struct {
	Title     string        `json:"title"`
	Summary   string        `json:"summary"`
	Scenes    []StoryScene  `json:"scenes"`
	Trophies  []StoryTrophy `json:"trophies"`
	MJVerdict string        `json:"mj_verdict"`
}

// StoryArtifact - сохранённая история главы. Ровно одна запись на главу.
type StoryArtifact struct {
	ChapterID    string          `db:"chapter_id" json:"chapter_id"`
	SessionID    string          `db:"session_id" json:"session_id"`
	Story        json.RawMessage `db:"story" json:"story"`
	RenderedText string          `db:"rendered_text" json:"rendered_text"`
	Model        string          `db:"model" json:"model"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// DecodeStory разбирает сохранённый структурированный объект истории.
func (a *StoryArtifact) DecodeStory() (*StructuredStory, error) {
	var story StructuredStory
	if err := json.Unmarshal(a.Story, &story); err != nil {
		return nil, err
	}
	return &story, nil
}
