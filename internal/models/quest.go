package models

import "time"

// QuestStatusDone - единственный статус выполнения квеста, который попадает в историю.
const QuestStatusDone = "done"

// Quest - определение квеста, на которое ссылается запись о выполнении.
type Quest struct {
	ID               string  `db:"quest_id" json:"id"`
	Title            string  `db:"quest_title" json:"title"`
	RoomCode         *string `db:"room_code" json:"room_code,omitempty"`
	Difficulty       *string `db:"difficulty" json:"difficulty,omitempty"`
	EstimatedMinutes *int    `db:"estimated_minutes" json:"estimated_minutes,omitempty"`
}

// QuestCompletion - запись о выполнении квеста в рамках главы.
type QuestCompletion struct {
	ID        string     `db:"id" json:"id"`
	ChapterID string     `db:"chapter_id" json:"chapter_id"`
	Status    string     `db:"status" json:"status"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	Quest     Quest      `json:"quest"`
}
