package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bobbin/internal/config"
	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/textutil"
)

// JobLogger manages the dedicated log file of each job.
type JobLogger struct {
	baseDir string
	format  string
	level   string
}

// NewJobLogger creates a job logger rooted at <log_dir>/jobs. It returns nil
// when no log directory is configured.
func NewJobLogger(cfg *config.Config) *JobLogger {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return nil
	}
	return &JobLogger{
		baseDir: filepath.Join(cfg.Paths.LogDir, "jobs"),
		format:  cfg.Logging.Format,
		level:   cfg.Logging.Level,
	}
}

// Path returns the log file for a job. Retries of the same job append to it.
func (j *JobLogger) Path(item *queue.Item) string {
	return filepath.Join(j.baseDir, fmt.Sprintf("job-%d-%s.log", item.ID, textutil.Slugify(item.Label())))
}

// Ensure prepares the log directory and returns the job's log path.
func (j *JobLogger) Ensure(item *queue.Item) (string, error) {
	if item == nil {
		return "", errors.New("queue item is nil")
	}
	path := j.Path(item)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("ensure job log directory: %w", err)
	}
	return path, nil
}

// CreateHandler builds a slog.Handler writing to path and the function that
// closes it.
func (j *JobLogger) CreateHandler(path string) (slog.Handler, func(), error) {
	format := j.format
	if strings.TrimSpace(format) == "" {
		format = "json"
	}
	handler, closer, err := logging.NewFileHandler(path, format, j.level)
	if err != nil {
		return nil, nil, err
	}
	return handler, func() { _ = closer.Close() }, nil
}

// teeHandler sends every record to both handlers.
type teeHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.primary.Enabled(ctx, level) || t.secondary.Enabled(ctx, level)
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	if t.primary.Enabled(ctx, record.Level) {
		errs = append(errs, t.primary.Handle(ctx, record.Clone()))
	}
	if t.secondary.Enabled(ctx, record.Level) {
		errs = append(errs, t.secondary.Handle(ctx, record.Clone()))
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{primary: t.primary.WithAttrs(attrs), secondary: t.secondary.WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{primary: t.primary.WithGroup(name), secondary: t.secondary.WithGroup(name)}
}
