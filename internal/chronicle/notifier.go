package chronicle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chronicle-server/internal/models"
	"chronicle-server/internal/repository"
	"chronicle-server/internal/telemetry"
)

// Attempt - итог одного вызова пайплайна для аудита и журнала.
type Attempt struct {
	UserID           string
	ChapterID        string
	ChapterTitle     string
	Outcome          models.AttemptOutcome
	FailedStage      models.PipelineStage // только для OutcomeError
	Forced           bool
	Model            string
	InputPayload     string
	Instructions     string
	RawOutput        string
	Story            *models.StructuredStory
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
	Err              error
}

// SideEffectReport - результат записи аудита и журнала. Вызывающий может его игнорировать.
type SideEffectReport struct {
	AuditErr   error
	JournalErr error
}

// OK сообщает, что обе записи прошли успешно.
func (r SideEffectReport) OK() bool {
	return r.AuditErr == nil && r.JournalErr == nil
}

// Notifier пишет ровно одну запись аудита и одну запись журнала на вызов.
// Ошибки записи никогда не возвращаются как ошибки: они попадают в SideEffectReport и лог.
type Notifier struct {
	audit   repository.AuditRepository
	journal repository.JournalRepository
	logger  telemetry.Logger
	now     func() time.Time
}

// NewNotifier создает Notifier.
func NewNotifier(audit repository.AuditRepository, journal repository.JournalRepository, logger telemetry.Logger) *Notifier {
	return &Notifier{
		audit:   audit,
		journal: journal,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RecordAttempt записывает аудит и журнал попытки.
func (n *Notifier) RecordAttempt(ctx context.Context, attempt Attempt) SideEffectReport {
	meta := telemetry.Metadata{
		"chapter_id": attempt.ChapterID,
		"user_id":    attempt.UserID,
		"outcome":    string(attempt.Outcome),
	}

	var report SideEffectReport
	report.AuditErr = safeWrite(func() error {
		return n.audit.Create(ctx, n.auditEntry(attempt))
	})
	if report.AuditErr != nil {
		n.logger.Warning("failed to write audit entry", withMeta(meta, telemetry.Metadata{"error": report.AuditErr}))
	}

	report.JournalErr = safeWrite(func() error {
		return n.journal.Create(ctx, n.journalEntry(attempt))
	})
	if report.JournalErr != nil {
		n.logger.Warning("failed to write journal entry", withMeta(meta, telemetry.Metadata{"error": report.JournalErr}))
	}

	return report
}

func (n *Notifier) auditEntry(attempt Attempt) *models.AuditEntry {
	entry := &models.AuditEntry{
		UserID:           attempt.UserID,
		ChapterID:        attempt.ChapterID,
		Outcome:          attempt.Outcome,
		Forced:           attempt.Forced,
		Model:            optional(attempt.Model),
		Instructions:     optional(attempt.Instructions),
		RawOutput:        optional(attempt.RawOutput),
		DurationMs:       attempt.Duration.Milliseconds(),
		PromptTokens:     attempt.PromptTokens,
		CompletionTokens: attempt.CompletionTokens,
		CreatedAt:        n.now(),
	}
	if attempt.InputPayload != "" && json.Valid([]byte(attempt.InputPayload)) {
		entry.InputPayload = json.RawMessage(attempt.InputPayload)
	}
	if attempt.Story != nil {
		if parsed, err := json.Marshal(attempt.Story); err == nil {
			entry.ParsedOutput = parsed
		}
	}
	if attempt.Outcome == models.OutcomeError {
		entry.FailedStage = optional(string(attempt.FailedStage))
		if attempt.Err != nil {
			entry.ErrorMessage = optional(attempt.Err.Error())
		}
	}
	return entry
}

func (n *Notifier) journalEntry(attempt Attempt) *models.JournalEntry {
	title := attempt.ChapterTitle
	if title == "" {
		title = attempt.ChapterID
	}

	var status models.JournalStatus
	var message string
	switch attempt.Outcome {
	case models.OutcomeCached:
		status = models.JournalStatusCached
		message = fmt.Sprintf("The chronicle of %q was recalled from the archive (cached).", title)
	case models.OutcomeSuccess:
		status = models.JournalStatusSealed
		message = fmt.Sprintf("The chronicle of %q has been written and sealed.", title)
	default:
		status = models.JournalStatusFailed
		message = fmt.Sprintf("The chronicle of %q could not be written (failed at %s).", title, attempt.FailedStage)
	}

	return &models.JournalEntry{
		UserID:    attempt.UserID,
		ChapterID: attempt.ChapterID,
		Kind:      models.JournalEntryKindChapterStory,
		Status:    status,
		Message:   message,
		CreatedAt: n.now(),
	}
}

// safeWrite превращает панику приемника в ошибку.
func safeWrite(write func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("side effect panicked: %v", r)
		}
	}()
	return write()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
