package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bobbin/internal/logging"
	"bobbin/internal/services"
)

// runPreflightChecks asks every configured stage for its health before the
// first job starts. Returns nil when all stages are ready, or a configuration
// error listing every failure.
func (m *Manager) runPreflightChecks(ctx context.Context, logger *slog.Logger, stages []pipelineStage) error {
	var failures []string
	for _, stg := range stages {
		health := stg.handler.HealthCheck(ctx)
		if health.Ready {
			logger.Debug("preflight check passed",
				logging.String("check", stg.name),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", stg.name),
			logging.String("detail", health.Detail),
			logging.String(logging.FieldErrorHint, "fix the reported issue and start the run again"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", stg.name, health.Detail))
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "workflow", "preflight", strings.Join(failures, "; "), nil)
	}
	return nil
}
