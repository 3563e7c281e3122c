package chronicle

import (
	"fmt"
	"strings"

	"chronicle-server/internal/models"
)

// RenderStory превращает структурированную историю в markdown-текст:
// резюме, сцены, трофеи и вердикт. Пустые разделы не выводятся.
func RenderStory(story models.StructuredStory) string {
	sections := make([]string, 0, 4)

	if summary := strings.TrimSpace(story.Summary); summary != "" {
		sections = append(sections, summary)
	}

	if len(story.Scenes) > 0 {
		lines := make([]string, 0, len(story.Scenes))
		for _, scene := range story.Scenes {
			header := fmt.Sprintf("**%s**", strings.TrimSpace(scene.QuestTitle))
			if location := strings.TrimSpace(scene.LocationCode); location != "" {
				header += fmt.Sprintf(" (%s)", location)
			}
			lines = append(lines, fmt.Sprintf("- %s\n  %s", header, strings.TrimSpace(scene.Scene)))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(story.Trophies) > 0 {
		lines := make([]string, 0, len(story.Trophies))
		for _, trophy := range story.Trophies {
			lines = append(lines, fmt.Sprintf("- %s — %s", strings.TrimSpace(trophy.Title), strings.TrimSpace(trophy.Description)))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if verdict := strings.TrimSpace(story.MJVerdict); verdict != "" {
		sections = append(sections, verdict)
	}

	return strings.Join(sections, "\n\n")
}
