package chronicle

import (
	"encoding/json"
	"fmt"
	"strings"

	"chronicle-server/internal/models"
)

// Многословность рассказчика.
const (
	VerbosityShort   = "short"
	VerbosityDefault = "default"
	VerbosityRich    = "rich"
)

// Значения рассказчика по умолчанию, когда профиль пуст.
const (
	defaultNarratorName      = "the Chronicler"
	defaultNarratorArchetype = "storyteller"
	defaultNarratorTone      = "warm"
)

// SceneBudget - максимальное число сцен для каждой многословности.
type SceneBudget struct {
	Short   int
	Default int
	Rich    int
}

// DefaultSceneBudget возвращает бюджет short=4, default=8, rich=12.
func DefaultSceneBudget() SceneBudget {
	return SceneBudget{Short: 4, Default: 8, Rich: 12}
}

// MaxScenes возвращает число сцен для многословности. Неизвестное значение считается default.
func (b SceneBudget) MaxScenes(verbosity string) int {
	switch normalizeVerbosity(verbosity) {
	case VerbosityShort:
		return b.Short
	case VerbosityRich:
		return b.Rich
	default:
		return b.Default
	}
}

// TruncationPolicy - какие квесты остаются, если их больше бюджета сцен.
type TruncationPolicy string

const (
	// TruncateKeepEarliest оставляет самые ранние выполнения. Поведение по умолчанию.
	TruncateKeepEarliest TruncationPolicy = "earliest"
	// TruncateKeepLatest оставляет самые поздние выполнения.
	// Отклонение от поведения по умолчанию, включается только явно (STORY_TRUNCATION=latest).
	TruncateKeepLatest TruncationPolicy = "latest"
)

// TruncateQuests обрезает хронологически отсортированные квесты до maxScenes
// и заново нумерует OrderHint с нуля.
func TruncateQuests(quests []models.StoryQuestSummary, maxScenes int, policy TruncationPolicy) []models.StoryQuestSummary {
	kept := quests
	if maxScenes >= 0 && len(quests) > maxScenes {
		if policy == TruncateKeepLatest {
			kept = quests[len(quests)-maxScenes:]
		} else {
			kept = quests[:maxScenes]
		}
	}
	out := make([]models.StoryQuestSummary, len(kept))
	for i, q := range kept {
		q.OrderHint = i
		out[i] = q
	}
	return out
}

// NarratorStyle - кто рассказывает историю и для кого.
type NarratorStyle struct {
	PlayerName      *string
	NarratorName    string
	Emoji           *string
	Archetype       string
	SignaturePhrase *string
}

// NarrativeTones - интонация истории.
type NarrativeTones struct {
	Tone      string
	Verbosity string
	Pacing    models.ChapterPacing
}

// NarrativeContexts - свободные контексты приключения и главы, уже нормализованные.
type NarrativeContexts struct {
	Adventure *string
	Chapter   *string
}

// StyleFromProfile заполняет стиль и тон значениями профиля или значениями по умолчанию.
func StyleFromProfile(profile models.StyleProfile, pacing models.ChapterPacing) (NarratorStyle, NarrativeTones) {
	p := profile.Persona
	style := NarratorStyle{
		PlayerName:      NormalizeContext(profile.DisplayName),
		NarratorName:    valueOr(p.Name, defaultNarratorName),
		Emoji:           NormalizeContext(p.Emoji),
		Archetype:       valueOr(p.Archetype, defaultNarratorArchetype),
		SignaturePhrase: NormalizeContext(p.SignaturePhrase),
	}
	verbosity := VerbosityDefault
	if p.Verbosity != nil {
		verbosity = normalizeVerbosity(*p.Verbosity)
	}
	if pacing == "" {
		pacing = models.PacingStandard
	}
	tones := NarrativeTones{
		Tone:      valueOr(p.Tone, defaultNarratorTone),
		Verbosity: verbosity,
		Pacing:    pacing,
	}
	return style, tones
}

// BuildInstructionText собирает системный промт. Один и тот же вход всегда дает один и тот же текст.
func BuildInstructionText(style NarratorStyle, tones NarrativeTones, contexts NarrativeContexts) string {
	var b strings.Builder

	narrator := style.NarratorName
	if style.Emoji != nil {
		narrator += " " + *style.Emoji
	}
	fmt.Fprintf(&b, "You are %s, a %s who turns a player's completed quests into the chronicle of a finished chapter.\n", narrator, style.Archetype)
	fmt.Fprintf(&b, "Tone: %s. Verbosity: %s (%s). Chapter pacing: %s.\n", tones.Tone, tones.Verbosity, verbosityHint(tones.Verbosity), tones.Pacing)
	if style.SignaturePhrase != nil {
		fmt.Fprintf(&b, "You may weave in your signature phrase once: %q.\n", *style.SignaturePhrase)
	}

	b.WriteString("\nPLAYER\n")
	if style.PlayerName != nil {
		fmt.Fprintf(&b, "- The player is called %q. Mention this name at most once in the whole story.\n", *style.PlayerName)
	} else {
		b.WriteString("- The player's name is unknown. Never invent a name; address the player as \"you\" or \"the hero\".\n")
	}

	b.WriteString("\nCONTEXT\n")
	switch {
	case contexts.Adventure != nil && contexts.Chapter != nil:
		fmt.Fprintf(&b, "- Adventure context (takes precedence): %s\n", *contexts.Adventure)
		fmt.Fprintf(&b, "- Chapter context (use only where it does not contradict the adventure context): %s\n", *contexts.Chapter)
	case contexts.Adventure != nil:
		fmt.Fprintf(&b, "- Adventure context: %s\n", *contexts.Adventure)
	case contexts.Chapter != nil:
		fmt.Fprintf(&b, "- Chapter context: %s\n", *contexts.Chapter)
	default:
		b.WriteString("- No extra context was supplied. Rely only on the quests in the payload.\n")
	}

	b.WriteString("\nOUTPUT CONTRACT\n")
	b.WriteString("- Respond with a single JSON object matching the provided schema and nothing else.\n")
	b.WriteString("- title: a short chapter title.\n")
	b.WriteString("- summary: 2 to 4 sentences recapping the chapter.\n")
	b.WriteString("- scenes: exactly one scene per quest in the payload, in the supplied order_hint order. ")
	b.WriteString("Copy quest_id and quest_title from the payload, use room_code as location_code (empty string when absent). ")
	b.WriteString("If the payload has no quests, return an empty scenes array.\n")
	fmt.Fprintf(&b, "- trophies: between %d and %d entries, each a short title and a one-sentence description.\n", MinTrophies, MaxTrophies)
	b.WriteString("- mj_verdict: one sentence, the game master's closing verdict on the chapter.\n")
	b.WriteString("- Do not invent quests, places or characters that are not in the payload or context.\n")

	return b.String()
}

// BuildContextPayload сериализует StoryContext в JSON. Порядок полей фиксирован структурами.
func BuildContextPayload(storyCtx models.StoryContext) (string, error) {
	if storyCtx.Quests == nil {
		storyCtx.Quests = []models.StoryQuestSummary{}
	}
	data, err := json.Marshal(storyCtx)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации контекста истории: %w", err)
	}
	return string(data), nil
}

// BuildStoryContext строит пейлоад генерации из входных данных и уже обрезанных квестов.
func BuildStoryContext(inputs *StoryInputs, quests []models.StoryQuestSummary) models.StoryContext {
	storyCtx := models.StoryContext{
		Chapter: models.StoryChapterContext{
			ID:        inputs.Chapter.ID,
			Title:     inputs.Chapter.Title,
			Pacing:    inputs.Chapter.Pacing,
			Context:   inputs.ChapterContext,
			Status:    inputs.Chapter.Status,
			CreatedAt: inputs.Chapter.CreatedAt.UTC(),
		},
		Quests: quests,
	}
	if inputs.Adventure != nil {
		storyCtx.Adventure = &models.StoryAdventureContext{
			ID:      inputs.Adventure.ID,
			Title:   inputs.Adventure.Title,
			Code:    inputs.Adventure.Code,
			Context: inputs.AdventureContext,
		}
	}
	return storyCtx
}

// Prompt - готовый запрос генерации.
type Prompt struct {
	Instructions string
	Payload      string
	Context      models.StoryContext
	MaxScenes    int
	Dropped      int // Сколько выполненных квестов не попало в историю из-за бюджета
}

// BuildPrompt применяет бюджет сцен и собирает инструкции и пейлоад.
func BuildPrompt(inputs *StoryInputs, budget SceneBudget, policy TruncationPolicy) (*Prompt, error) {
	style, tones := StyleFromProfile(inputs.Profile, inputs.Chapter.Pacing)
	maxScenes := budget.MaxScenes(tones.Verbosity)
	quests := TruncateQuests(inputs.DoneQuests, maxScenes, policy)

	storyCtx := BuildStoryContext(inputs, quests)
	payload, err := BuildContextPayload(storyCtx)
	if err != nil {
		return nil, err
	}
	instructions := BuildInstructionText(style, tones, NarrativeContexts{
		Adventure: inputs.AdventureContext,
		Chapter:   inputs.ChapterContext,
	})

	return &Prompt{
		Instructions: instructions,
		Payload:      payload,
		Context:      storyCtx,
		MaxScenes:    maxScenes,
		Dropped:      len(inputs.DoneQuests) - len(quests),
	}, nil
}

func verbosityHint(verbosity string) string {
	switch verbosity {
	case VerbosityShort:
		return "one or two sentences per scene"
	case VerbosityRich:
		return "a vivid paragraph per scene"
	default:
		return "two to four sentences per scene"
	}
}

func normalizeVerbosity(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case VerbosityShort:
		return VerbosityShort
	case VerbosityRich:
		return VerbosityRich
	default:
		return VerbosityDefault
	}
}

func valueOr(s *string, fallback string) string {
	if n := NormalizeContext(s); n != nil {
		return *n
	}
	return fallback
}
