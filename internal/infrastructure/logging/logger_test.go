package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/homesync/node-agent/internal/infrastructure/config"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		logger := New(config.LoggingConfig{Level: "info", Format: format, Output: "stderr"}, "1.0.0")
		if logger == nil {
			t.Fatalf("New() with format %q returned nil", format)
		}
	}
}

func TestDestination(t *testing.T) {
	if destination("stderr") != os.Stderr || destination("STDERR") != os.Stderr {
		t.Error("stderr output not selected")
	}
	for _, name := range []string{"stdout", "", "syslog"} {
		if destination(name) != os.Stdout {
			t.Errorf("destination(%q) is not stdout", name)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewWithWriter_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test-version", &buf)

	logger.Info("relay switched", "state", true)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if entry["service"] != serviceName {
		t.Errorf("service = %v, want %q", entry["service"], serviceName)
	}
	if entry["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", entry["version"])
	}
	if entry["msg"] != "relay switched" {
		t.Errorf("msg = %v, want 'relay switched'", entry["msg"])
	}
	if entry["state"] != true {
		t.Errorf("state = %v, want true", entry["state"])
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "v", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn entry missing")
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Format: "json"}, "v", &buf)
	child := logger.With("component", "connectivity")

	if child == logger {
		t.Fatal("expected child logger to be different from parent")
	}

	child.Info("hello")
	if !strings.Contains(buf.String(), `"component":"connectivity"`) {
		t.Errorf("child output missing component attr: %s", buf.String())
	}
}

func TestDefaultAndDiscard(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
	d := Discard()
	if d == nil {
		t.Fatal("Discard() returned nil")
	}
	d.Error("dropped")
}
