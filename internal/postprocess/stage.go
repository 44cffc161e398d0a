package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/stage"
)

// Stage runs every configured processor in order.
type Stage struct {
	processors []Processor
	logger     *slog.Logger
}

// NewStage builds the post-processing stage handler.
func NewStage(processors []Processor, logger *slog.Logger) *Stage {
	return &Stage{processors: processors, logger: logging.NewComponentLogger(logger, "postprocess")}
}

// Prepare checks a transcript is present.
func (s *Stage) Prepare(_ context.Context, item *queue.Item) error {
	if strings.TrimSpace(item.RawText) == "" {
		return services.Wrap(services.ErrValidation, "postprocess", "prepare",
			fmt.Sprintf("no transcript for %s; run transcription first", item.Label()), nil)
	}
	item.SetProgress("postprocess", "Refining transcript", 0)
	return nil
}

// Execute applies the processors. The first failure stops the stage.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	if len(s.processors) == 0 {
		item.SetProgressComplete("postprocess", "No processors configured")
		return nil
	}
	src, err := stage.DecodeSource(item)
	if err != nil {
		return err
	}
	for i, p := range s.processors {
		item.SetProgress("postprocess", "Running "+p.Name(), float64(i*100/len(s.processors)))
		if err := p.Process(ctx, item, src); err != nil {
			return err
		}
		logger.Info("processor complete", logging.String("processor", p.Name()))
	}
	item.SetProgressComplete("postprocess", "Transcript refined")
	return nil
}

// HealthCheck reports readiness.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	return stage.Ready("postprocess")
}
