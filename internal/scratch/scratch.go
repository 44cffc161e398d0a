// Package scratch manages the per-run working directory tree. Every run owns
// a run-<id> directory under the configured scratch root and every job gets
// its own job-<id> subdirectory inside it.
package scratch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bobbin/internal/logging"
)

const runPrefix = "run-"

// Tree is one run's scratch directory.
type Tree struct {
	root string
	dir  string
	keep bool

	mu      sync.Mutex
	created bool
	removed bool
}

// NewTree allocates a run directory name under root. Nothing is created on
// disk until the first JobDir call.
func NewTree(root string, keep bool) *Tree {
	return &Tree{
		root: root,
		dir:  filepath.Join(root, runPrefix+uuid.NewString()),
		keep: keep,
	}
}

// Path returns the run directory.
func (t *Tree) Path() string { return t.dir }

// Used reports whether a job directory was created or the tree was closed.
func (t *Tree) Used() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.created || t.removed
}

// Keep reports whether Close leaves the tree on disk.
func (t *Tree) Keep() bool { return t.keep }

// JobDir creates and returns the dedicated directory for a job.
func (t *Tree) JobDir(jobID int64) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.removed {
		return "", fmt.Errorf("scratch tree %s already removed", t.dir)
	}
	dir := filepath.Join(t.dir, "job-"+strconv.FormatInt(jobID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job scratch dir: %w", err)
	}
	t.created = true
	return dir, nil
}

// Close removes the run directory unless the tree was created with keep.
// It is safe to call more than once.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.keep || t.removed {
		return nil
	}
	t.removed = true
	if !t.created {
		return nil
	}
	if err := os.RemoveAll(t.dir); err != nil {
		return fmt.Errorf("remove scratch tree: %w", err)
	}
	return nil
}

// CleanStaleResult contains the outcome of a stale directory cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes run directories under root older than maxAge. Only
// run-* directories are considered so unrelated content is left alone.
func CleanStale(ctx context.Context, root string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	root = strings.TrimSpace(root)
	if root == "" {
		return result
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), runPrefix) {
			continue
		}

		dirPath := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale scratch directory", "scratch_cleanup_failed",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		if logger != nil {
			logger.Info("removed stale scratch directory",
				logging.String("path", dirPath),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "scratch_cleanup"),
			)
		}
	}
	return result
}

// DirInfo contains metadata about a run directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListRuns returns every run directory under root with its size.
func ListRuns(root string) ([]DirInfo, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), runPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(root, entry.Name())
		size, _ := dirSize(dirPath)
		dirs = append(dirs, DirInfo{Name: entry.Name(), Path: dirPath, ModTime: info.ModTime(), Size: size})
	}
	return dirs, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
