package chronicle_test

import (
	"testing"

	"chronicle-server/internal/chronicle"
	"chronicle-server/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestRenderStory_Full(t *testing.T) {
	story := models.StructuredStory{
		Title:   "The Gate Opens",
		Summary: "You found a key and opened the gate.",
		Scenes: []models.StoryScene{
			{QuestID: "qc-0", QuestTitle: "Find the key", LocationCode: "hall", Scene: "A glint under the rug."},
			{QuestID: "qc-1", QuestTitle: "Open the gate", Scene: "The gate groaned."},
		},
		Trophies: []models.StoryTrophy{
			{Title: "Keeper", Description: "Found what was lost."},
		},
		MJVerdict: "A tidy chapter.",
	}

	expected := "You found a key and opened the gate.\n\n" +
		"- **Find the key** (hall)\n  A glint under the rug.\n" +
		"- **Open the gate**\n  The gate groaned.\n\n" +
		"- Keeper — Found what was lost.\n\n" +
		"A tidy chapter."

	assert.Equal(t, expected, chronicle.RenderStory(story))
}

func TestRenderStory_OmitsEmptySections(t *testing.T) {
	story := models.StructuredStory{
		Summary:   "A quiet chapter.",
		MJVerdict: "Rest is also progress.",
	}

	assert.Equal(t, "A quiet chapter.\n\nRest is also progress.", chronicle.RenderStory(story))
	assert.Equal(t, "", chronicle.RenderStory(models.StructuredStory{}))
}
