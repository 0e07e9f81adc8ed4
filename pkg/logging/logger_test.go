package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
}

func TestSetup_EmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: LevelDebug, Output: &buf})

	logger.Info().Str("cache_key", "object-detail-1").Msg("cache hit")

	out := buf.String()
	if !strings.Contains(out, `"cache_key":"object-detail-1"`) {
		t.Errorf("log output missing structured field: %s", out)
	}
	if !strings.Contains(out, "cache hit") {
		t.Errorf("log output missing message: %s", out)
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: LevelWarn, Output: &buf})

	logger.Debug().Msg("should be filtered")
	logger.Warn().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Error("debug message not filtered at warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn message missing at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		want  zerolog.Level
	}{
		{name: "debug", level: LevelDebug, want: zerolog.DebugLevel},
		{name: "info", level: LevelInfo, want: zerolog.InfoLevel},
		{name: "warn", level: LevelWarn, want: zerolog.WarnLevel},
		{name: "warning alias", level: "warning", want: zerolog.WarnLevel},
		{name: "error", level: LevelError, want: zerolog.ErrorLevel},
		{name: "unknown falls back to info", level: "verbose", want: zerolog.InfoLevel},
		{name: "case insensitive", level: "DEBUG", want: zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(tt.level); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestNewLogger_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: LevelDebug, Output: &buf})

	logger := NewLogger("scheduler")
	logger.Info().Msg("started")

	if !strings.Contains(buf.String(), `"component":"scheduler"`) {
		t.Errorf("log output missing component field: %s", buf.String())
	}
}
