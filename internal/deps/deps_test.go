package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestFindFFmpegConfiguredPath(t *testing.T) {
	ffmpeg := writeStub(t, t.TempDir(), "ffmpeg")

	path, ok := FindFFmpeg(ffmpeg)
	if !ok || path != ffmpeg {
		t.Fatalf("expected %s, got %q (ok=%v)", ffmpeg, path, ok)
	}

	if _, ok := Locator(filepath.Join(t.TempDir(), "nope"))(); ok {
		t.Fatal("expected missing ffmpeg to be reported")
	}
}

func TestRequirementsMarkFFmpegOptional(t *testing.T) {
	reqs := Requirements("")
	if len(reqs) != 2 || reqs[0].Optional || !reqs[1].Optional || reqs[1].Command != "ffmpeg" {
		t.Fatalf("unexpected requirements %#v", reqs)
	}
}
