package workflow

import (
	"context"
	"log/slog"
	"sync"

	"bobbin/internal/config"
	"bobbin/internal/dedup"
	"bobbin/internal/logging"
	"bobbin/internal/notifications"
	"bobbin/internal/queue"
	"bobbin/internal/scratch"
	"bobbin/internal/source"
)

// Classifier turns raw locators into classified sources.
type Classifier interface {
	Classify(ctx context.Context, raw string, hints source.Hints) (source.Source, error)
}

// Manager coordinates submission and sequential processing of queued jobs.
type Manager struct {
	cfg        *config.Config
	store      *queue.Store
	logger     *slog.Logger
	notifier   notifications.Service
	classifier Classifier
	index      *dedup.Index
	tree       *scratch.Tree
	jobLogs    *JobLogger

	stages []pipelineStage

	mu       sync.RWMutex
	running  bool
	state    PipelineState
	lastErr  error
	lastItem *queue.Item
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	notifier    notifications.Service
	keepScratch bool
	jobLogs     bool
}

// WithNotifier replaces the notifier built from config (used in tests).
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(o *managerOptions) {
		o.notifier = notifier
	}
}

// WithKeepScratch leaves the run's scratch tree on disk after Close.
func WithKeepScratch(keep bool) ManagerOption {
	return func(o *managerOptions) {
		o.keepScratch = o.keepScratch || keep
	}
}

// WithJobLogs toggles the per-job log files.
func WithJobLogs(enabled bool) ManagerOption {
	return func(o *managerOptions) {
		o.jobLogs = enabled
	}
}

// NewManager constructs a workflow manager. The registry is consulted on the
// first submission that needs it and again after every run, so media exported
// by a run is visible to later submissions.
func NewManager(cfg *config.Config, store *queue.Store, classifier Classifier, registry dedup.Lister, logger *slog.Logger, opts ...ManagerOption) *Manager {
	options := &managerOptions{keepScratch: cfg.Workflow.KeepScratch, jobLogs: true}
	for _, opt := range opts {
		opt(options)
	}
	notifier := options.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	var jobLogs *JobLogger
	if options.jobLogs {
		jobLogs = NewJobLogger(cfg)
	}
	return &Manager{
		cfg:        cfg,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:   notifier,
		classifier: classifier,
		index:      dedup.NewIndex(registry),
		tree:       scratch.NewTree(cfg.Paths.ScratchDir, options.keepScratch),
		jobLogs:    jobLogs,
		state:      PipelineIdle,
	}
}

// ScratchPath returns the scratch directory of the current or latest run.
func (m *Manager) ScratchPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Path()
}

// Close removes the run's scratch tree unless keep-scratch was requested.
func (m *Manager) Close() error {
	m.mu.RLock()
	tree := m.tree
	m.mu.RUnlock()
	if tree.Keep() {
		m.logger.Info("scratch tree kept", logging.String("path", tree.Path()))
	}
	return tree.Close()
}

// beginRunLocked gives the run a fresh scratch tree when the previous one has
// been used. Callers hold m.mu.
func (m *Manager) beginRunLocked() *scratch.Tree {
	if m.tree.Used() {
		if err := m.tree.Close(); err != nil {
			m.logger.Warn("failed to remove previous scratch tree", logging.Error(err))
		}
		m.tree = scratch.NewTree(m.cfg.Paths.ScratchDir, m.tree.Keep())
	}
	return m.tree
}

// endRun removes the run's scratch tree and drops the cached registry set.
func (m *Manager) endRun(tree *scratch.Tree) {
	if err := tree.Close(); err != nil {
		m.logger.Warn("failed to remove scratch tree", logging.Error(err))
	}
	m.index.Invalidate()
}
