package houndgo_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	houndgo "github.com/hupe1980/houndgo"
)

func TestNewLoggerNilHandler(t *testing.T) {
	l := houndgo.NewLogger(nil)
	require.NotNil(t, l)

	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
}

func TestLoggerConstructors(t *testing.T) {
	assert.True(t, houndgo.NewJSONLogger(slog.LevelDebug).Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, houndgo.NewTextLogger(slog.LevelWarn).Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, houndgo.NoopLogger().Enabled(context.Background(), slog.LevelError))
}

func TestManagerTextLogging(t *testing.T) {
	m, err := houndgo.NewManager(t.TempDir(), houndgo.WithTextLogging(slog.LevelError))
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestLoggerContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := houndgo.NewLogger(slog.NewTextHandler(&buf, nil))

	l.WithIndex("code").WithRoot("/data/idx").Info("opened")

	out := buf.String()
	assert.Contains(t, out, "index=code")
	assert.Contains(t, out, "root=/data/idx")
	assert.Contains(t, out, "opened")
}
