package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &out))
	return out
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "socialauth",
		Environment: "test",
		Output:      &buf,
	})

	log.Info("login started", "provider", "GOOGLE")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "login started", entry["message"])
	assert.Equal(t, "socialauth", entry["service"])
	assert.Equal(t, "test", entry["environment"])
	assert.Equal(t, "GOOGLE", entry["provider"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info("dropped")
	assert.Empty(t, buf.String())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf})

	ctx := ContextWithAttempt(context.Background(), "attempt-1", "FACEBOOK")
	ctx = ContextWithTraceID(ctx, "4bf92f3577b34da6a3ce929d0e0e4736")
	log.InfoContext(ctx, "login resolved")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "attempt-1", entry["attempt_id"])
	assert.Equal(t, "FACEBOOK", entry["provider"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf}).
		WithComponent("facade").
		WithAttempt("a-2", "APPLE").
		WithError(assert.AnError)

	log.Error("failed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "facade", entry["component"])
	assert.Equal(t, "a-2", entry["attempt_id"])
	assert.Equal(t, "APPLE", entry["provider"])
	assert.Equal(t, assert.AnError.Error(), entry["error"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "text", Output: &buf})

	log.Info("hello")
	assert.Contains(t, buf.String(), "message=hello")
}
