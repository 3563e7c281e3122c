// Package telemetry - уровневые структурированные события и таймеры операций
// поверх zap. Уровень success пишется как info с полем event_level=success.
package telemetry

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Metadata - произвольные поля события.
type Metadata map[string]interface{}

// Уровни событий.
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

const (
	// EventLevelKey - поле с уровнем события в терминах пайплайна.
	EventLevelKey = "event_level"
	// ElapsedKey - поле с длительностью операции в миллисекундах.
	ElapsedKey = "elapsed_ms"
)

var operationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chronicle_operation_duration_seconds",
		Help:    "Duration of timed pipeline operations.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation", "status"},
)

// Logger - структурированный логгер с уровнями debug|info|success|warning|error.
type Logger interface {
	Debug(msg string, meta Metadata)
	Info(msg string, meta Metadata)
	Success(msg string, meta Metadata)
	Warning(msg string, meta Metadata)
	Error(msg string, meta Metadata)
	// StartTimer открывает именованную операцию. Закрывается ровно один раз через EndSuccess или EndError.
	StartTimer(operation string, meta Metadata) Timer
	// With возвращает логгер с постоянными полями.
	With(meta Metadata) Logger
}

// Timer - интервал именованной операции.
type Timer interface {
	EndSuccess(meta Metadata) time.Duration
	EndError(err error, meta Metadata) time.Duration
	Elapsed() time.Duration
}

type zapLogger struct {
	log *zap.Logger
}

// New создает Logger поверх zap.
func New(log *zap.Logger) Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &zapLogger{log: log}
}

func (l *zapLogger) Debug(msg string, meta Metadata) {
	l.log.Debug(msg, fields(LevelDebug, meta)...)
}

func (l *zapLogger) Info(msg string, meta Metadata) {
	l.log.Info(msg, fields(LevelInfo, meta)...)
}

func (l *zapLogger) Success(msg string, meta Metadata) {
	l.log.Info(msg, fields(LevelSuccess, meta)...)
}

func (l *zapLogger) Warning(msg string, meta Metadata) {
	l.log.Warn(msg, fields(LevelWarning, meta)...)
}

func (l *zapLogger) Error(msg string, meta Metadata) {
	l.log.Error(msg, fields(LevelError, meta)...)
}

func (l *zapLogger) With(meta Metadata) Logger {
	return &zapLogger{log: l.log.With(metaFields(meta)...)}
}

func (l *zapLogger) StartTimer(operation string, meta Metadata) Timer {
	t := &timer{
		log:       l.log.With(zap.String("operation", operation)),
		operation: operation,
		start:     time.Now(),
	}
	t.log.Debug("timer started", fields(LevelDebug, meta)...)
	return t
}

type timer struct {
	log       *zap.Logger
	operation string
	start     time.Time
	ended     atomic.Bool
}

func (t *timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

func (t *timer) EndSuccess(meta Metadata) time.Duration {
	elapsed := t.Elapsed()
	if !t.ended.CompareAndSwap(false, true) {
		t.log.Warn("timer already ended", zap.String(EventLevelKey, LevelWarning))
		return elapsed
	}
	operationDuration.WithLabelValues(t.operation, "success").Observe(elapsed.Seconds())
	fs := append(fields(LevelSuccess, meta), zap.Int64(ElapsedKey, elapsed.Milliseconds()))
	t.log.Info("timer ended", fs...)
	return elapsed
}

func (t *timer) EndError(err error, meta Metadata) time.Duration {
	elapsed := t.Elapsed()
	if !t.ended.CompareAndSwap(false, true) {
		t.log.Warn("timer already ended", zap.String(EventLevelKey, LevelWarning))
		return elapsed
	}
	operationDuration.WithLabelValues(t.operation, "error").Observe(elapsed.Seconds())
	fs := append(fields(LevelError, meta), zap.Int64(ElapsedKey, elapsed.Milliseconds()), zap.Error(err))
	t.log.Error("timer ended with error", fs...)
	return elapsed
}

func fields(level string, meta Metadata) []zap.Field {
	return append([]zap.Field{zap.String(EventLevelKey, level)}, metaFields(meta)...)
}

// metaFields сортирует ключи, чтобы порядок полей в логе был стабилен.
func metaFields(meta Metadata) []zap.Field {
	if len(meta) == 0 {
		return nil
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fs := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := meta[k].(error); ok {
			fs = append(fs, zap.NamedError(k, err))
			continue
		}
		fs = append(fs, zap.Any(k, meta[k]))
	}
	return fs
}
