package models_test

import (
	"errors"
	"fmt"
	"testing"

	"chronicle-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageError(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := models.NewStageError(models.StageGenerating, models.ErrGeneration, cause)

	assert.True(t, errors.Is(err, models.ErrGeneration))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, models.ErrPersistence))
	assert.Equal(t, models.StageGenerating, models.StageOf(err))
	// Сообщение стабильно и не зависит от причины
	assert.Equal(t, "chapter story: generating: story generation failed", err.Error())
}

func TestNewStageError_KeepsInnerStage(t *testing.T) {
	inner := models.NewStageError(models.StageLoading, models.ErrNotFound, nil)
	wrapped := fmt.Errorf("load inputs: %w", inner)

	err := models.NewStageError(models.StageGenerating, models.ErrGeneration, wrapped)

	require.Error(t, err)
	assert.Equal(t, models.StageLoading, models.StageOf(err))
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.False(t, errors.Is(err, models.ErrGeneration))
}

func TestValidationError_IsErrValidation(t *testing.T) {
	err := models.NewStageError(models.StageValidating, models.ErrValidation,
		&models.ValidationError{Snippet: "{oops", Reason: "unexpected EOF"})

	assert.True(t, errors.Is(err, models.ErrValidation))

	var vErr *models.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "{oops", vErr.Snippet)
	assert.Equal(t, "unexpected EOF", vErr.Reason)
}
