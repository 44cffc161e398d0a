package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileIntoNewDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "episode.mp3")
	if err := os.WriteFile(src, []byte("ID3 frame data"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "job-1", "work", "source.mp3")
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "ID3 frame data" {
		t.Fatalf("copied %q", got)
	}
}

func TestCopyFileMissingSourceLeavesNoDestination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst")
	if err := CopyFile(filepath.Join(dir, "nope"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("expected no destination file, stat err %v", err)
	}
}

func TestWriteFileAtomicReplacesAndCleansUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podcast", "show", "metadata", "ep-1.json")
	for _, body := range []string{`{"a":1}`, `{"a":2}`} {
		if err := WriteFileAtomic(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", body, err)
		}
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":2}` {
		t.Fatalf("unexpected content %q", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicFailureRemovesTemp(t *testing.T) {
	dir := t.TempDir()
	// A directory at the target path makes the final rename fail.
	target := filepath.Join(dir, "taken")
	if err := os.MkdirAll(filepath.Join(target, "child"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(target, []byte("x"), 0o644); err == nil {
		t.Fatal("expected rename over a non-empty directory to fail")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "taken" {
		t.Fatalf("expected temp file removed, found %v", entries)
	}
}
