package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})

		logger.Debug("hello", "key", "value")

		out := buf.String()
		if !strings.Contains(out, "hello") || !strings.Contains(out, "key=value") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{JSON: true})

		logger.Info("hello")

		if !strings.Contains(buf.String(), `"msg":"hello"`) {
			t.Errorf("expected JSON output, got %q", buf.String())
		}
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

		logger.Info("filtered")
		logger.Warn("kept")

		out := buf.String()
		if strings.Contains(out, "filtered") {
			t.Error("info message should have been filtered")
		}
		if !strings.Contains(out, "kept") {
			t.Error("warn message should have been kept")
		}
	})
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	// Must not panic and must discard silently.
	logger.Error("discarded")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"  Error ", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
