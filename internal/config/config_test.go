package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" || cfg.RetryBudget != 3 || cfg.RetryBackoff != 3*time.Second {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.AdvanceDelay != 100*time.Millisecond || cfg.OutputTemplate != "%(title).200B.%(ext)s" {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ytqd.toml")
	body := "port = \"9090\"\nretry_budget = 5\nretry_backoff = \"1s\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("YTQD_PORT", "7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "7000" {
		t.Errorf("expected env to override file, got port %q", cfg.Port)
	}
	if cfg.RetryBudget != 5 || cfg.RetryBackoff != time.Second {
		t.Errorf("expected file values, got budget %d backoff %v", cfg.RetryBudget, cfg.RetryBackoff)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	cfg.RetryBudget = 0
	cfg.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
		ok       bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, test := range tests {
		got, err := ParseLevel(test.in)
		if got != test.expected || (err == nil) != test.ok {
			t.Errorf("ParseLevel(%q) = %v, %v", test.in, got, err)
		}
	}
}

func TestWriteSampleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "ytqd.toml")
	if err := WriteSample(path, false); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := WriteSample(path, false); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of sample failed: %v", err)
	}
	if cfg.MetadataCacheTTL != 10*time.Minute || cfg.CleanupSchedule != "@hourly" {
		t.Fatalf("sample did not round-trip: %#v", cfg)
	}
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.DownloadDir = filepath.Join(root, "downloads")
	cfg.LogFile = filepath.Join(root, "logs", "ytqd.log")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.DownloadDir, filepath.Dir(cfg.LogFile)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s", dir)
		}
	}
}
