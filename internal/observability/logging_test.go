package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	logger.Info("turn complete", "channel", "cli", "iterations", 2)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "turn complete" {
		t.Errorf("msg = %v, want turn complete", record["msg"])
	}
	if record["channel"] != "cli" {
		t.Errorf("channel = %v, want cli", record["channel"])
	}
}

func TestNewLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info output leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn output missing: %q", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got != slog.LevelInfo {
		t.Errorf("parseLevel(nonsense) = %v, want info", got)
	}
	if !NewLogger(LogConfig{}).Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default logger should enable info level")
	}
}
