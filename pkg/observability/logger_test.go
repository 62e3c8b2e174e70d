package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// logLine decodes the single JSON log line in buf.
func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug suppressed at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if buf.Len() > 0 {
			t.Error("Debug message should not be logged at Info level")
		}
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")

		entry := logLine(t, &buf)
		if entry["level"] != "INFO" {
			t.Errorf("Expected level INFO, got %v", entry["level"])
		}
		if entry["msg"] != "info message" {
			t.Errorf("Expected message 'info message', got %v", entry["msg"])
		}
	})

	t.Run("warn and error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Warn("warn message")
		if buf.Len() == 0 {
			t.Error("Warn message should be logged at Info level")
		}

		buf.Reset()
		logger.Error("error message")
		if buf.Len() == 0 {
			t.Error("Error message should be logged at Info level")
		}
	})
}

func TestLogger_WithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithField("user_id", "alice")

	logger.Info("grant issued")

	entry := logLine(t, &buf)
	if entry["user_id"] != "alice" {
		t.Errorf("Expected user_id 'alice', got %v", entry["user_id"])
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithFields(map[string]interface{}{
		"user_id": "alice",
		"tier":    "welcome",
	})

	logger.Info("session resolved")

	entry := logLine(t, &buf)
	if entry["user_id"] != "alice" {
		t.Errorf("Expected user_id 'alice', got %v", entry["user_id"])
	}
	if entry["tier"] != "welcome" {
		t.Errorf("Expected tier 'welcome', got %v", entry["tier"])
	}
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("connection refused")).Error("grant read failed")

	entry := logLine(t, &buf)
	if entry["error"] != "connection refused" {
		t.Errorf("Expected error 'connection refused', got %v", entry["error"])
	}

	// A nil error must not add a field or change the logger.
	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the receiver unchanged")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithComponent("resolver")

	logger.Info("session started")

	entry := logLine(t, &buf)
	if entry["component"] != "resolver" {
		t.Errorf("Expected component 'resolver', got %v", entry["component"])
	}
}

func TestLogger_Formatters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.Infof("serving on port %d", 8080)
	if !strings.Contains(buf.String(), "serving on port 8080") {
		t.Errorf("Expected formatted message, got %s", buf.String())
	}

	buf.Reset()
	logger.Debugf("sweep closed %d sessions", 3)
	if !strings.Contains(buf.String(), "sweep closed 3 sessions") {
		t.Errorf("Expected formatted message, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"ERROR", ErrorLevel},
		{"nonsense", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}
