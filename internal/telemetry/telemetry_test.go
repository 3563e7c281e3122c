package telemetry_test

import (
	"errors"
	"testing"

	"chronicle-server/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (telemetry.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return telemetry.New(zap.New(core)), logs
}

func TestLogger_Levels(t *testing.T) {
	log, logs := newObserved()

	log.Debug("d", nil)
	log.Info("i", telemetry.Metadata{"chapter_id": "C1"})
	log.Success("s", nil)
	log.Warning("w", nil)
	log.Error("e", telemetry.Metadata{"cause": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 5)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "C1", entries[1].ContextMap()["chapter_id"])
	assert.Equal(t, zapcore.InfoLevel, entries[2].Level)
	assert.Equal(t, telemetry.LevelSuccess, entries[2].ContextMap()[telemetry.EventLevelKey])
	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[4].Level)
	assert.Equal(t, "boom", entries[4].ContextMap()["cause"])
}

func TestLogger_With(t *testing.T) {
	log, logs := newObserved()

	log.With(telemetry.Metadata{"user_id": "u1"}).Info("hello", nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "u1", logs.All()[0].ContextMap()["user_id"])
}

func TestTimer_EndsOnce(t *testing.T) {
	log, logs := newObserved()

	timer := log.StartTimer("generate", nil)
	timer.EndError(errors.New("failed"), telemetry.Metadata{"stage": "generating"})
	timer.EndError(errors.New("again"), nil)
	timer.EndSuccess(nil)

	assert.Equal(t, 1, logs.FilterMessage("timer started").Len())
	ended := logs.FilterMessage("timer ended with error").All()
	require.Len(t, ended, 1)
	assert.Equal(t, "generate", ended[0].ContextMap()["operation"])
	assert.Contains(t, ended[0].ContextMap(), telemetry.ElapsedKey)
	assert.Equal(t, 0, logs.FilterMessage("timer ended").Len())
	assert.Equal(t, 2, logs.FilterMessage("timer already ended").Len())
}

func TestTimer_EndSuccess(t *testing.T) {
	log, logs := newObserved()

	timer := log.StartTimer("load", nil)
	elapsed := timer.EndSuccess(telemetry.Metadata{"cached": true})

	assert.GreaterOrEqual(t, elapsed.Nanoseconds(), int64(0))
	ended := logs.FilterMessage("timer ended").All()
	require.Len(t, ended, 1)
	assert.Equal(t, telemetry.LevelSuccess, ended[0].ContextMap()[telemetry.EventLevelKey])
	assert.Equal(t, true, ended[0].ContextMap()["cached"])
}
