package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/helixml/cinerag/internal/config"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []config.LogFormat{config.LogFormatPretty, config.LogFormatJSON} {
		cfg := config.NewAppConfigWithOptions(
			config.WithLogLevel("INFO"),
			config.WithLogFormat(format),
		)
		if NewLogger(cfg) == nil {
			t.Fatalf("NewLogger(%s) returned nil", format)
		}
	}
}

func TestLogger_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LogFormatJSON, "DEBUG")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(lines))
	}
	for i, line := range lines {
		var data map[string]any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LogFormatJSON, "WARN")

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record should be filtered at WARN")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record should be written")
	}
}

func TestLogger_ContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LogFormatJSON, "INFO")

	ctx := context.Background()
	ctx = WithCorrelationID(ctx, "corr-123")
	ctx = WithRequestID(ctx, "req-456")
	ctx = WithUserID(ctx, "6f1c1c1e-0000-4000-8000-000000000001")

	logger.With("component", "recommendations").InfoContext(ctx, "served")

	var data map[string]any
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if data["correlation_id"] != "corr-123" {
		t.Errorf("correlation_id = %v", data["correlation_id"])
	}
	if data["request_id"] != "req-456" {
		t.Errorf("request_id = %v", data["request_id"])
	}
	if data["user_id"] != "6f1c1c1e-0000-4000-8000-000000000001" {
		t.Errorf("user_id = %v", data["user_id"])
	}
	if data["component"] != "recommendations" {
		t.Errorf("component = %v", data["component"])
	}
}

func TestLogger_RecordAttrWinsOverContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LogFormatJSON, "INFO")

	ctx := WithUserID(context.Background(), "from-context")
	logger.InfoContext(ctx, "rated", "user_id", "from-record")

	if n := strings.Count(buf.String(), `"user_id"`); n != 1 {
		t.Fatalf("user_id written %d times in %s", n, buf.String())
	}
	if !strings.Contains(buf.String(), `"user_id":"from-record"`) {
		t.Errorf("record value should be kept: %s", buf.String())
	}
}

func TestLogger_NoContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LogFormatPretty, "INFO")

	logger.InfoContext(context.Background(), "plain")

	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("unexpected request_id in %q", buf.String())
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	if CorrelationID(ctx) != "" || RequestID(ctx) != "" || UserID(ctx) != "" {
		t.Fatal("empty context should yield empty ids")
	}

	ctx = WithRequestID(WithCorrelationID(ctx, "c"), "r")
	if CorrelationID(ctx) != "c" {
		t.Errorf("CorrelationID() = %q", CorrelationID(ctx))
	}
	if RequestID(ctx) != "r" {
		t.Errorf("RequestID() = %q", RequestID(ctx))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestConfigure(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := config.NewAppConfigWithOptions(
		config.WithLogLevel("DEBUG"),
		config.WithLogFormat(config.LogFormatJSON),
	)
	logger := Configure(cfg)

	if slog.Default() != logger {
		t.Error("Configure should install the logger as default")
	}
}
