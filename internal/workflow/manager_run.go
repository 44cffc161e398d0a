package workflow

import (
	"context"
	"errors"
	"time"

	"bobbin/internal/logging"
)

// Run processes queued jobs strictly one at a time until the queue drains.
// The first job that fails stops the run and its error is returned; jobs
// behind it stay queued. Cancelling ctx interrupts the current stage and
// leaves that job in progress for the next run to pick up. Each run works in
// its own scratch tree, removed when the run returns unless keep-scratch is
// set.
func (m *Manager) Run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return summary, ErrRunInProgress
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return summary, errors.New("workflow stages not configured")
	}
	stages := append([]pipelineStage(nil), m.stages...)
	tree := m.beginRunLocked()
	m.running = true
	m.state = PipelineInProgress
	m.lastErr = nil
	m.mu.Unlock()

	state := PipelineIdle
	defer func() {
		m.endRun(tree)
		m.mu.Lock()
		m.running = false
		m.state = state
		m.mu.Unlock()
	}()

	logger := logging.WithContext(ctx, m.logger)
	if err := m.runPreflightChecks(ctx, logger, stages); err != nil {
		state = PipelineFailed
		m.setLastError(err)
		return summary, err
	}

	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		state = PipelineFailed
		m.setLastError(err)
		return summary, err
	}
	summary.Reset = reset
	if reset > 0 {
		logger.Info("requeued jobs interrupted by a previous run",
			logging.String(logging.FieldEventType, "jobs_requeued"),
			logging.Int64("count", reset),
		)
	}

	start := time.Now()
	announced := false
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		item, err := m.store.NextQueued(ctx)
		if err != nil {
			state = PipelineFailed
			m.setLastError(err)
			logging.ErrorWithContext(logger, "failed to fetch next queue item", "queue_fetch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			return summary, err
		}
		if item == nil {
			break
		}
		if !announced {
			m.onRunStarted(ctx)
			announced = true
		}

		if err := m.processItem(ctx, stages, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return summary, err
			}
			state = PipelineFailed
			summary.FailedID = item.ID
			m.onRunFinished(ctx, len(summary.Completed), 1, time.Since(start))
			return summary, err
		}
		summary.Completed = append(summary.Completed, item.ID)
	}

	if announced {
		state = PipelineCompleted
		m.onRunFinished(ctx, len(summary.Completed), 0, time.Since(start))
	}
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("completed", len(summary.Completed)),
		logging.Duration("run_duration", time.Since(start)),
	)
	return summary, nil
}
