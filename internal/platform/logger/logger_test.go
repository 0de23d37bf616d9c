package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/orderflow/internal/config"
)

// restoreDefault puts back the process-wide logger Setup replaces.
func restoreDefault(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry), "log line is not JSON: %s", line)
		entries = append(entries, entry)
	}
	return entries
}

func TestSetupWithWriter(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug level", "debug", true, true},
		{"info level", "info", false, true},
		{"warn level", "WARN", false, false},
		{"error level", "error", false, false},
		{"invalid level falls back to info", "verbose", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreDefault(t)
			var buf bytes.Buffer

			l, err := SetupWithWriter(config.ServerConfig{LogLevel: tt.level}, &buf)
			require.NoError(t, err)
			require.NotNil(t, l)

			l.Debug("debug message")
			l.Info("info message", "order_id", 42)

			entries := decodeLines(t, &buf)
			var sawDebug, sawInfo bool
			for _, e := range entries {
				switch e["msg"] {
				case "debug message":
					sawDebug = true
				case "info message":
					sawInfo = true
					assert.Equal(t, float64(42), e["order_id"])
					assert.Equal(t, "INFO", e["level"])
				}
			}
			assert.Equal(t, tt.wantDebug, sawDebug)
			assert.Equal(t, tt.wantInfo, sawInfo)
		})
	}
}

func TestSetupSetsDefault(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	l, err := SetupWithWriter(config.ServerConfig{LogLevel: "info"}, &buf)
	require.NoError(t, err)
	assert.Same(t, l, slog.Default())

	slog.Info("through the default logger")
	assert.Contains(t, buf.String(), "through the default logger")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	level, ok := ParseLevel(" Warning ")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, level)

	level, ok = ParseLevel("")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	scoped := slog.New(slog.NewJSONHandler(&buf, nil)).With("task_id", "abc")
	ctx := WithLogger(context.Background(), scoped)

	assert.Same(t, scoped, FromContext(ctx))
	FromContext(ctx).Info("handled")
	assert.Contains(t, buf.String(), `"task_id":"abc"`)

	fallback := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))
	assert.Same(t, fallback, FromContextOrDefault(WithLogger(context.Background(), nil), fallback))
	assert.NotNil(t, FromContext(context.Background()))
}
