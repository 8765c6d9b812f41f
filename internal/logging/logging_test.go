package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: slog.LevelDebug, JSON: true, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info("document written", "document_id", "main")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "document written", entry["msg"])
	assert.Equal(t, "main", entry["document_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: slog.LevelWarn, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info("hidden")
	Debug("hidden")
	assert.Empty(t, buf.String())

	Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestFromContextCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: slog.LevelInfo, JSON: true, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	ctx := WithRequestID(context.Background(), "abc123")
	assert.Equal(t, "abc123", RequestID(ctx))
	FromContext(ctx).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc123", entry["request_id"])
}
