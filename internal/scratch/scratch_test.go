package scratch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bobbin/internal/logging"
)

func TestTreeJobDirsAndClose(t *testing.T) {
	root := t.TempDir()
	tree := NewTree(root, false)

	first, err := tree.JobDir(1)
	if err != nil {
		t.Fatalf("JobDir: %v", err)
	}
	second, err := tree.JobDir(2)
	if err != nil {
		t.Fatalf("JobDir: %v", err)
	}
	if first == second {
		t.Fatal("jobs must not share a working directory")
	}
	if !strings.HasPrefix(first, tree.Path()) || filepath.Base(first) != "job-1" {
		t.Fatalf("unexpected job dir %q", first)
	}

	if err := tree.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(tree.Path()); !os.IsNotExist(err) {
		t.Fatal("expected run directory to be removed")
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := tree.JobDir(3); err == nil {
		t.Fatal("expected JobDir after Close to fail")
	}
}

func TestTreeUsed(t *testing.T) {
	tree := NewTree(t.TempDir(), false)
	if tree.Used() {
		t.Fatal("fresh tree must not be used")
	}
	if _, err := tree.JobDir(1); err != nil {
		t.Fatalf("JobDir: %v", err)
	}
	if !tree.Used() {
		t.Fatal("expected tree used after JobDir")
	}
	closed := NewTree(t.TempDir(), false)
	if err := closed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed.Used() {
		t.Fatal("expected closed tree to count as used")
	}
}

func TestTreeKeepLeavesFiles(t *testing.T) {
	tree := NewTree(t.TempDir(), true)
	dir, err := tree.JobDir(9)
	if err != nil {
		t.Fatalf("JobDir: %v", err)
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected job dir to survive with keep: %v", err)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldRunDirectories(t *testing.T) {
	root := t.TempDir()
	oldTime := time.Now().Add(-2 * time.Hour)

	oldRun := filepath.Join(root, "run-old")
	unrelated := filepath.Join(root, "keep-me")
	recentRun := filepath.Join(root, "run-recent")
	for _, dir := range []string{oldRun, unrelated, recentRun} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	for _, dir := range []string{oldRun, unrelated} {
		if err := os.Chtimes(dir, oldTime, oldTime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != oldRun {
		t.Fatalf("expected only %s removed, got %v", oldRun, result.Removed)
	}
	for _, dir := range []string{unrelated, recentRun} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected %s to remain: %v", dir, err)
		}
	}

	runs, err := ListRuns(root)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Name != "run-recent" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}
