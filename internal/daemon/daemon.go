package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"bobbin/internal/api"
	"bobbin/internal/config"
	"bobbin/internal/deps"
	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/scratch"
	"bobbin/internal/workflow"
)

var errDaemonStopped = errors.New("daemon not running")

// Daemon hosts the HTTP API around one workflow manager and holds the
// single-instance lock for as long as it runs.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	api      *apiServer

	lock *flock.Flock

	running   atomic.Bool
	runActive atomic.Bool
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	runs      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	RunActive    bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, wf *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lock:     flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg.Paths.APIBind, cfg.Paths.APIToken, d, api.NewQueueService(store), logger)
	return d, nil
}

// Start acquires the lock, sweeps stale scratch trees and starts the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.sweepScratch(runCtx)
	if err := d.api.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return err
	}
	d.mu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("bobbin daemon started",
		logging.String("lock", d.lock.Path()),
		logging.String("api_bind", d.cfg.Paths.APIBind),
	)
	return nil
}

// Stop cancels any active run, stops the API and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = nil, nil
	d.mu.Unlock()
	d.api.stop()
	d.runs.Wait()
	if err := d.workflow.Close(); err != nil {
		d.logger.Warn("failed to remove scratch tree", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("bobbin daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Submit classifies and enqueues a source.
func (d *Daemon) Submit(ctx context.Context, locator string, opts workflow.SubmitOptions) (workflow.SubmitReport, error) {
	return d.workflow.Submit(ctx, locator, opts)
}

// Preprocess writes metadata for a source without queueing it.
func (d *Daemon) Preprocess(ctx context.Context, locator string, opts workflow.SubmitOptions) (workflow.SubmitReport, error) {
	return d.workflow.Preprocess(ctx, locator, opts)
}

// StartRun drains the queue in the background. Only one run is active at a
// time; a second request gets workflow.ErrRunInProgress.
func (d *Daemon) StartRun() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctx := d.ctx
	if !d.running.Load() || ctx == nil {
		return errDaemonStopped
	}
	if !d.runActive.CompareAndSwap(false, true) {
		return workflow.ErrRunInProgress
	}
	d.runs.Add(1)
	go func() {
		defer d.runs.Done()
		defer d.runActive.Store(false)
		summary, err := d.workflow.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.WarnWithContext(d.logger, "run stopped on failure", "run_failed",
				logging.Int64("failed_item_id", summary.FailedID),
				logging.Int("completed", len(summary.Completed)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "remaining jobs stay queued"),
				logging.String(logging.FieldErrorHint, "inspect the job log, then retry the failed job"),
			)
			return
		}
		d.logger.Info("run finished", logging.Int("completed", len(summary.Completed)))
	}()
	return nil
}

// WaitForRuns blocks until the active run, if any, returns.
func (d *Daemon) WaitForRuns() {
	d.runs.Wait()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		RunActive:    d.runActive.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.cfg.QueueDBPath(),
		LockFilePath: d.lock.Path(),
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}

func (d *Daemon) sweepScratch(ctx context.Context) {
	hours := d.cfg.Workflow.StaleScratchHours
	if hours <= 0 {
		return
	}
	result := scratch.CleanStale(ctx, d.cfg.Paths.ScratchDir, time.Duration(hours)*time.Hour, d.logger)
	if len(result.Removed) > 0 {
		d.logger.Info("removed stale scratch trees", logging.Int("count", len(result.Removed)))
	}
}
