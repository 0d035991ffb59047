package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func spanCtx(t *testing.T) context.Context {
	t.Helper()
	tid, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	sid, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestSlogLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONSlog(&buf, "debug")
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 4)
	for i, want := range []struct{ level, msg, key string }{
		{"DEBUG", "dbg", "a"}, {"INFO", "inf", "b"}, {"WARN", "wrn", "c"}, {"ERROR", "err", "d"},
	} {
		assert.Equal(t, want.level, lines[i]["level"])
		assert.Equal(t, want.msg, lines[i]["msg"])
		assert.Contains(t, lines[i], want.key)
		assert.NotContains(t, lines[i], "trace_id")
	}
}

func TestSlogLogger_WithAndTrace(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONSlog(&buf, "info").With("module", "session_manager")

	log.Info(spanCtx(t), "refresh rotated", "user_id", "u1")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "session_manager", lines[0]["module"])
	assert.Equal(t, "u1", lines[0]["user_id"])
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", lines[0]["trace_id"])
	assert.Equal(t, "0102030405060708", lines[0]["span_id"])
}

func TestSlogLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONSlog(&buf, "warn")

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestParseSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseSlogLevel(in), in)
	}
}

func TestNop(t *testing.T) {
	var log Logger = Nop{}
	log.With("k", "v").Error(context.Background(), "ignored")
}
