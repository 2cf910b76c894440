package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "ytqd.log")

	logger, err := New(Options{Level: slog.LevelInfo, LogFile: path, Console: &console})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("Queued", "id", "abc")
	logger.Debug("hidden")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !strings.Contains(console.String(), "Queued") || strings.Contains(console.String(), "hidden") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	if strings.Contains(console.String(), "\x1b[") {
		t.Errorf("expected no colour codes for non-terminal output")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("log file is not JSON: %q", data)
	}
	if record["msg"] != "Queued" || record["id"] != "abc" {
		t.Fatalf("unexpected file record %v", record)
	}
}

func TestCloseWithoutFile(t *testing.T) {
	logger, err := New(Options{Console: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
