package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/stage"
)

// Stage runs every exporter in order. The first failure stops the stage but
// files already written stay in place and stay recorded on the item.
type Stage struct {
	exporters []Exporter
	outputDir string
	logger    *slog.Logger
	now       func() time.Time
}

// NewStage builds the export stage handler.
func NewStage(exporters []Exporter, outputDir string, logger *slog.Logger) *Stage {
	return &Stage{
		exporters: exporters,
		outputDir: outputDir,
		logger:    logging.NewComponentLogger(logger, "export"),
		now:       time.Now,
	}
}

// Prepare checks there is something to export.
func (s *Stage) Prepare(_ context.Context, item *queue.Item) error {
	if strings.TrimSpace(item.Text()) == "" {
		return services.Wrap(services.ErrValidation, "export", "prepare",
			fmt.Sprintf("no transcript for %s; run transcription first", item.Label()), nil)
	}
	item.SetProgress("export", "Writing outputs", 0)
	return nil
}

// Execute runs the exporters.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	src, err := stage.DecodeSource(item)
	if err != nil {
		return err
	}
	opts := Options{OutputDir: s.outputDir, Source: src, Now: s.now()}
	for i, exp := range s.exporters {
		item.SetProgress("export", "Exporting "+exp.Name(), float64(i*100/len(s.exporters)))
		location, err := exp.Export(ctx, item, opts)
		if err != nil {
			return services.Wrap(services.ErrExport, "export", exp.Name(),
				fmt.Sprintf("export of %s failed", item.Label()), err)
		}
		logger.Info("export written",
			logging.String("exporter", exp.Name()),
			logging.String("location", location),
		)
	}
	item.SetProgressComplete("export", "Outputs written")
	return nil
}

// HealthCheck reports readiness.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if len(s.exporters) == 0 {
		return stage.NotReady("export", "no exporters configured")
	}
	if strings.TrimSpace(s.outputDir) == "" {
		return stage.NotReady("export", "output directory not configured")
	}
	return stage.Ready("export")
}
