package deps

import (
	"os"
	"path/filepath"
	"testing"

	"bobbin/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
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
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("expected blank command detail, got %q", results[2].Detail)
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Acquisition.FFmpegBinary = "/opt/ffmpeg/bin/ffmpeg"

	reqs := Requirements(&cfg)
	byName := make(map[string]Requirement, len(reqs))
	for _, req := range reqs {
		byName[req.Name] = req
	}
	if byName["FFmpeg"].Command != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("expected configured ffmpeg binary, got %#v", byName["FFmpeg"])
	}
	if !byName["yt-dlp"].Optional {
		t.Fatal("expected yt-dlp to be optional")
	}
	if byName["uvx"].Command != "uvx" {
		t.Fatalf("expected uvx requirement, got %#v", byName["uvx"])
	}
	if Requirements(nil) != nil {
		t.Fatal("expected no requirements without config")
	}
}

func TestMissingIgnoresOptional(t *testing.T) {
	statuses := []Status{
		{Name: "FFmpeg", Available: true},
		{Name: "yt-dlp", Optional: true},
		{Name: "uvx"},
	}
	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "uvx" {
		t.Fatalf("unexpected missing set %#v", missing)
	}
}
