package models

import (
	"errors"
	"fmt"
)

// Ошибки пайплайна генерации истории главы.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrAuth             = errors.New("no authenticated user")
	ErrMissingReference = errors.New("chapter has no owning session")
	ErrGeneration       = errors.New("story generation failed")
	ErrValidation       = errors.New("generated story failed validation")
	ErrPersistence      = errors.New("story persistence failed")
)

// PipelineStage - состояние пайплайна генерации.
type PipelineStage string

const (
	StageAuthenticating PipelineStage = "authenticating"
	StageLoading        PipelineStage = "loading"
	StageCacheCheck     PipelineStage = "cache_check"
	StageCacheHit       PipelineStage = "cache_hit"
	StageBuilding       PipelineStage = "building"
	StageGenerating     PipelineStage = "generating"
	StageValidating     PipelineStage = "validating"
	StagePersisting     PipelineStage = "persisting"
	StageNotifying      PipelineStage = "notifying"
	StageDone           PipelineStage = "done"
	StageFailed         PipelineStage = "failed"
)

// StageError - прерывающая ошибка пайплайна с этапом, на котором она произошла.
// Error() стабилен и не содержит деталей причины, причина доступна через Unwrap.
type StageError struct {
	Stage PipelineStage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("chapter story: %s: %v", e.Stage, e.Kind)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStageError оборачивает cause в ошибку этапа. Если cause уже StageError, возвращается как есть.
func NewStageError(stage PipelineStage, kind error, cause error) error {
	var se *StageError
	if errors.As(cause, &se) {
		return se
	}
	return &StageError{Stage: stage, Kind: kind, Err: cause}
}

// StageOf возвращает этап, на котором упал пайплайн, или пустую строку.
func StageOf(err error) PipelineStage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ValidationError - ответ генерации не соответствует ожидаемой структуре.
type ValidationError struct {
	Snippet string // Обрезанный фрагмент ответа для логов
	Reason  string // Сообщение парсера или проверки
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid story output: %s", e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
