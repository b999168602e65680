package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wonny/tradecycle/pkg/config"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"})
			if l == nil {
				t.Fatal("Expected logger to be created")
			}

			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("Expected global level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug")

	tests := []struct {
		name      string
		logFunc   func()
		wantMsg   string
		wantLevel string
	}{
		{"debug", func() { l.Debug("debug message") }, "debug message", "debug"},
		{"info", func() { l.Info("info message") }, "info message", "info"},
		{"warnf", func() { l.Warnf("retry attempt: %d", 3) }, "retry attempt: 3", "warn"},
		{"errorf", func() { l.Errorf("tier %s failed", "alpaca") }, "tier alpaca failed", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			entry := decode(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("Expected level %q, got %q", tt.wantLevel, entry["level"])
			}
			if entry["message"] != tt.wantMsg {
				t.Errorf("Expected message %q, got %q", tt.wantMsg, entry["message"])
			}
		})
	}
}

func TestNewWithWriterLevelFilter(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")
	l.Info("dropped")

	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %s", buf.String())
	}
}

func TestWithFields(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug")

	l.WithFields(map[string]interface{}{
		"symbol": "AAPL",
		"stage":  "fetching",
		"price":  189.5,
	}).WithComponent("orchestrator").Info("trade executed")

	entry := decode(t, &buf)
	if entry["symbol"] != "AAPL" {
		t.Errorf("Expected symbol AAPL, got %v", entry["symbol"])
	}
	if entry["stage"] != "fetching" {
		t.Errorf("Expected stage fetching, got %v", entry["stage"])
	}
	if entry["price"] != 189.5 {
		t.Errorf("Expected price 189.5, got %v", entry["price"])
	}
	if entry["component"] != "orchestrator" {
		t.Errorf("Expected component orchestrator, got %v", entry["component"])
	}
}

func TestWithError(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug")

	l.WithError(errors.New("broker rejected")).WithField("symbol", "TSLA").Error("order failed")

	entry := decode(t, &buf)
	if entry["error"] != "broker rejected" {
		t.Errorf("Expected error 'broker rejected', got %v", entry["error"])
	}
	if entry["symbol"] != "TSLA" {
		t.Errorf("Expected symbol TSLA, got %v", entry["symbol"])
	}
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.log")

	l := New(&config.Config{Env: "test", LogLevel: "info", LogFormat: "json", LogFile: path})
	l.Info("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}
	if !bytes.Contains(data, []byte("written to file")) {
		t.Errorf("Expected file to contain message, got %s", data)
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.WithField("k", "v").Info("nothing")
}
