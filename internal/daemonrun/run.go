package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bobbin/internal/acquisition"
	"bobbin/internal/config"
	"bobbin/internal/daemon"
	"bobbin/internal/deps"
	"bobbin/internal/export"
	"bobbin/internal/logging"
	"bobbin/internal/postprocess"
	"bobbin/internal/preflight"
	"bobbin/internal/queue"
	"bobbin/internal/registry"
	"bobbin/internal/scratch"
	"bobbin/internal/services"
	"bobbin/internal/services/ytdlp"
	"bobbin/internal/source"
	"bobbin/internal/transcription"
	"bobbin/internal/workflow"
)

// Options configures how the pipeline is assembled.
type Options struct {
	// KeepScratch leaves the run's scratch tree on disk.
	KeepScratch bool
	// Stages wires the four processing stages. Submission-only callers
	// leave it off so exporter credentials are never touched.
	Stages bool
}

// Pipeline bundles the collaborators one bobbin process works with.
type Pipeline struct {
	Store    *queue.Store
	Manager  *workflow.Manager
	Registry registry.Registry

	logger *slog.Logger
}

// Build opens the queue and wires classifier, registry and (optionally) the
// processing stages into a workflow manager.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	reg, err := registry.New(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	acq := cfg.Acquisition
	resolver := ytdlp.NewService(ytdlp.Config{Binary: acq.YtDlpBinary, CookiesFile: acq.CookiesFile, UserAgent: acq.UserAgent})
	feeds := source.NewFeedFetcher(&http.Client{Timeout: time.Duration(acq.DownloadTimeout) * time.Second}, acq.UserAgent)
	classifier := source.NewClassifier(resolver, feeds, logger)

	manager := workflow.NewManager(cfg, store, classifier, reg, logger, workflow.WithKeepScratch(opts.KeepScratch))
	p := &Pipeline{Store: store, Manager: manager, Registry: reg, logger: logger}
	if opts.Stages {
		if err := registerStages(ctx, manager, cfg, logger); err != nil {
			p.Close(ctx)
			return nil, err
		}
	}
	return p, nil
}

// Close removes the scratch tree and releases the registry and queue.
func (p *Pipeline) Close(ctx context.Context) {
	if p == nil {
		return
	}
	if err := p.Manager.Close(); err != nil {
		p.logger.Warn("failed to remove scratch tree", logging.Error(err))
	}
	if err := registry.CloseRegistry(ctx, p.Registry); err != nil {
		p.logger.Warn("failed to close registry", logging.Error(err))
	}
	if err := p.Store.Close(); err != nil {
		p.logger.Warn("failed to close queue store", logging.Error(err))
	}
}

func registerStages(ctx context.Context, mgr *workflow.Manager, cfg *config.Config, logger *slog.Logger) error {
	exporters, err := export.NewExporters(ctx, cfg, logger)
	if err != nil {
		return err
	}
	mgr.ConfigureStages(workflow.StageSet{
		Acquisition:   acquisition.NewStage(acquisition.NewService(cfg), logger),
		Transcription: transcription.NewStage(transcription.NewWhisperXBackend(cfg.Transcription), logger),
		Postprocess:   postprocess.NewStage(postprocess.NewProcessors(cfg, postprocess.NewLLMClient(cfg), logger), logger),
		Export:        export.NewStage(exporters, cfg.Paths.OutputDir, logger),
	})
	return nil
}

// RunQueue drains the queue in the foreground under the run lock. SIGINT and
// SIGTERM cancel the current job, which stays in progress for the next run.
func RunQueue(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (workflow.RunSummary, error) {
	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return workflow.RunSummary{}, err
	}
	lock, err := daemon.AcquireLock(cfg)
	if err != nil {
		return workflow.RunSummary{}, err
	}
	defer lock.Unlock()

	sweepStaleScratch(ctx, cfg, logger)
	logDependencySnapshot(logger, cfg)
	if err := checkPreflight(ctx, cfg, logger); err != nil {
		return workflow.RunSummary{}, err
	}

	opts.Stages = true
	pipeline, err := Build(ctx, cfg, logger, opts)
	if err != nil {
		return workflow.RunSummary{}, err
	}
	defer pipeline.Close(context.Background())
	return pipeline.Manager.Run(ctx)
}

// Serve runs the daemon with its HTTP API until the context is cancelled or a
// termination signal arrives.
func Serve(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) error {
	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts.Stages = true
	pipeline, err := Build(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	defer pipeline.Close(context.Background())

	d, err := daemon.New(cfg, pipeline.Store, pipeline.Manager, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(ctx); err != nil {
		if errors.Is(err, daemon.ErrLocked) {
			return fmt.Errorf("%w; stop the other process or wait for its run to finish", err)
		}
		return err
	}
	defer d.Stop()

	logDependencySnapshot(logger, cfg)
	if err := checkPreflight(ctx, cfg, logger); err != nil {
		logging.WarnWithContext(logger, "preflight checks failed; runs will fail until fixed", "preflight_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "submissions are accepted but POST /api/run fails"),
			logging.String(logging.FieldErrorHint, "run bobbin status for details"),
		)
	}
	pidPath := filepath.Join(cfg.Paths.StateDir, "bobbin.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-ctx.Done()
	logger.Info("bobbin daemon shutting down")
	return nil
}

// checkPreflight runs the readiness checks and reports every failure at once.
func checkPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	failed := preflight.Failures(preflight.RunAll(ctx, cfg))
	if len(failed) == 0 {
		return nil
	}
	details := make([]string, len(failed))
	for i, r := range failed {
		details[i] = r.Name + ": " + r.Detail
		logger.Debug("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_check_failed"),
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
		)
	}
	return services.Wrap(services.ErrConfiguration, "run", "preflight", strings.Join(details, "; "), nil)
}

func sweepStaleScratch(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	if cfg.Workflow.StaleScratchHours <= 0 {
		return
	}
	scratch.CleanStale(ctx, cfg.Paths.ScratchDir, time.Duration(cfg.Workflow.StaleScratchHours)*time.Hour, logger)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("hf_token_present", strings.TrimSpace(cfg.Transcription.HFToken) != ""),
		logging.String("registry_backend", cfg.Registry.Backend),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs, logging.Bool(strings.ToLower(status.Name)+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
