package workflow

import (
	"context"
	"log/slog"

	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
)

// jobLogger returns the logger for one job: the manager logger, mirrored into
// the job's own log file when job logs are enabled.
// Context fields are left to the caller.
func (m *Manager) jobLogger(item *queue.Item) (*slog.Logger, func()) {
	base := m.logger
	if m.jobLogs == nil {
		return base, func() {}
	}
	path, err := m.jobLogs.Ensure(item)
	if err != nil {
		logging.WarnWithContext(base, "job log unavailable", "job_log_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job output only goes to the main log"),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
		)
		return base, func() {}
	}
	handler, closeFn, err := m.jobLogs.CreateHandler(path)
	if err != nil {
		logging.WarnWithContext(base, "failed to create job log writer", "job_log_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job output only goes to the main log"),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
		)
		return base, func() {}
	}
	secondary := handler.WithAttrs([]slog.Attr{logging.String(logging.FieldComponent, "workflow-manager")})
	return slog.New(teeHandler{primary: m.logger.Handler(), secondary: secondary}), closeFn
}

func withStageContext(ctx context.Context, stageName string, item *queue.Item, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	scope := services.Scope{Stage: stageName, RequestID: requestID}
	if item != nil {
		scope.ItemID = item.ID
		scope.Locator = item.Media
	}
	return services.WithScope(ctx, scope)
}
