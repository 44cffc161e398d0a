package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bobbin/internal/logging"
	"bobbin/internal/queue"
)

func (m *Manager) processItem(ctx context.Context, stages []pipelineStage, item *queue.Item) error {
	requestID := uuid.NewString()
	jobCtx := withStageContext(ctx, "", item, requestID)
	baseLogger, closeLog := m.jobLogger(item)
	defer closeLog()
	jobLogger := logging.WithContext(jobCtx, baseLogger)

	if err := m.transitionToProcessing(jobCtx, item); err != nil {
		jobLogger.Error("failed to transition job to in progress", logging.Error(err))
		m.setLastError(err)
		return err
	}
	jobStart := time.Now()

	for _, stg := range stages {
		stageCtx := withStageContext(ctx, stg.name, item, requestID)
		if err := m.executeStage(stageCtx, baseLogger, stg, item); err != nil {
			return err
		}
	}

	item.SetCompleted(time.Now())
	if err := m.store.Update(jobCtx, item); err != nil {
		wrapped := fmt.Errorf("persist job completion: %w", err)
		jobLogger.Error("failed to persist job completion", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	jobLogger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("markdown_path", item.MarkdownPath),
		logging.Duration("job_duration", time.Since(jobStart)),
	)
	m.setLastItem(item)
	m.onJobCompleted(jobCtx, item)
	return nil
}

func (m *Manager) executeStage(ctx context.Context, jobLogger *slog.Logger, stg pipelineStage, item *queue.Item) error {
	stageLogger := logging.WithContext(ctx, jobLogger)
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", strings.TrimSpace(item.Title)),
		logging.String("media", strings.TrimSpace(item.Media)),
	)

	if err := stg.handler.Prepare(ctx, item); err != nil {
		m.handleStageFailure(ctx, stageLogger, stg.name, item, err)
		return err
	}
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	if err := stg.handler.Execute(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return err
		}
		m.handleStageFailure(ctx, stageLogger, stg.name, item, err)
		return err
	}

	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("progress_stage", strings.TrimSpace(item.ProgressStage)),
		logging.String("progress_message", strings.TrimSpace(item.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastItem(item)
	return nil
}

func (m *Manager) transitionToProcessing(ctx context.Context, item *queue.Item) error {
	m.mu.RLock()
	tree := m.tree
	m.mu.RUnlock()
	dir, err := tree.JobDir(item.ID)
	if err != nil {
		return err
	}
	item.Status = queue.StatusInProgress
	item.WorkDir = dir
	item.ErrorMessage = ""
	item.ErrorKind = ""
	item.SetProgress("Starting", "Job started", 0)
	if err := m.store.Update(ctx, item); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastItem(item)
	return nil
}
