package chronicle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"chronicle-server/internal/chronicle"
	"chronicle-server/internal/models"
	"chronicle-server/internal/repository/mocks"
	"chronicle-server/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newNotifier(t *testing.T) (*chronicle.Notifier, *mocks.AuditRepository, *mocks.JournalRepository, *observer.ObservedLogs) {
	t.Helper()
	audit := new(mocks.AuditRepository)
	journal := new(mocks.JournalRepository)
	t.Cleanup(func() {
		audit.AssertExpectations(t)
		journal.AssertExpectations(t)
	})
	core, logs := observer.New(zapcore.DebugLevel)
	return chronicle.NewNotifier(audit, journal, telemetry.New(zap.New(core))), audit, journal, logs
}

func TestRecordAttempt_Success(t *testing.T) {
	ctx := context.Background()
	notifier, audit, journal, _ := newNotifier(t)

	var gotAudit *models.AuditEntry
	var gotJournal *models.JournalEntry
	audit.On("Create", ctx, mock.AnythingOfType("*models.AuditEntry")).
		Run(func(args mock.Arguments) { gotAudit = args.Get(1).(*models.AuditEntry) }).
		Return(nil).Once()
	journal.On("Create", ctx, mock.AnythingOfType("*models.JournalEntry")).
		Run(func(args mock.Arguments) { gotJournal = args.Get(1).(*models.JournalEntry) }).
		Return(nil).Once()

	report := notifier.RecordAttempt(ctx, chronicle.Attempt{
		UserID:           "u1",
		ChapterID:        "C1",
		ChapterTitle:     "The Gate",
		Outcome:          models.OutcomeSuccess,
		Model:            "gpt-4o-mini",
		InputPayload:     `{"quests":[]}`,
		Instructions:     "You are the Chronicler.",
		RawOutput:        "{}",
		Story:            &models.StructuredStory{Title: "T"},
		PromptTokens:     120,
		CompletionTokens: 80,
		Duration:         1500 * time.Millisecond,
	})

	assert.True(t, report.OK())
	require.NotNil(t, gotAudit)
	assert.Equal(t, models.OutcomeSuccess, gotAudit.Outcome)
	assert.Nil(t, gotAudit.FailedStage)
	assert.Nil(t, gotAudit.ErrorMessage)
	assert.Equal(t, int64(1500), gotAudit.DurationMs)
	assert.JSONEq(t, `{"quests":[]}`, string(gotAudit.InputPayload))
	assert.NotEmpty(t, gotAudit.ParsedOutput)
	assert.Equal(t, "gpt-4o-mini", *gotAudit.Model)

	require.NotNil(t, gotJournal)
	assert.Equal(t, models.JournalStatusSealed, gotJournal.Status)
	assert.Equal(t, models.JournalEntryKindChapterStory, gotJournal.Kind)
	assert.Contains(t, gotJournal.Message, "The Gate")
}

func TestRecordAttempt_ErrorCarriesStage(t *testing.T) {
	ctx := context.Background()
	notifier, audit, journal, _ := newNotifier(t)

	var gotAudit *models.AuditEntry
	var gotJournal *models.JournalEntry
	audit.On("Create", ctx, mock.Anything).
		Run(func(args mock.Arguments) { gotAudit = args.Get(1).(*models.AuditEntry) }).
		Return(nil).Once()
	journal.On("Create", ctx, mock.Anything).
		Run(func(args mock.Arguments) { gotJournal = args.Get(1).(*models.JournalEntry) }).
		Return(nil).Once()

	notifier.RecordAttempt(ctx, chronicle.Attempt{
		ChapterID:   "C1",
		Outcome:     models.OutcomeError,
		FailedStage: models.StageValidating,
		Err:         errors.New("invalid story output: title is empty"),
	})

	require.NotNil(t, gotAudit.FailedStage)
	assert.Equal(t, "validating", *gotAudit.FailedStage)
	require.NotNil(t, gotAudit.ErrorMessage)
	assert.Contains(t, *gotAudit.ErrorMessage, "title is empty")
	assert.Nil(t, gotAudit.InputPayload)
	assert.Equal(t, models.JournalStatusFailed, gotJournal.Status)
	assert.Contains(t, gotJournal.Message, "C1")
	assert.Contains(t, gotJournal.Message, "validating")
}

func TestRecordAttempt_SinkFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	notifier, audit, journal, logs := newNotifier(t)
	auditErr := errors.New("audit table is locked")

	audit.On("Create", ctx, mock.Anything).Return(auditErr).Once()
	journal.On("Create", ctx, mock.Anything).Run(func(mock.Arguments) { panic("journal exploded") }).Once()

	var report chronicle.SideEffectReport
	assert.NotPanics(t, func() {
		report = notifier.RecordAttempt(ctx, chronicle.Attempt{ChapterID: "C1", Outcome: models.OutcomeCached})
	})

	assert.False(t, report.OK())
	assert.ErrorIs(t, report.AuditErr, auditErr)
	require.Error(t, report.JournalErr)
	assert.Contains(t, report.JournalErr.Error(), "journal exploded")
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}
