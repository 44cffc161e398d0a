package acquisition

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/stage"
)

// Stage is the acquisition stage handler.
type Stage struct {
	acq    AudioAcquisition
	logger *slog.Logger
}

// NewStage builds the acquisition stage around acq.
func NewStage(acq AudioAcquisition, logger *slog.Logger) *Stage {
	return &Stage{acq: acq, logger: logging.NewComponentLogger(logger, "acquisition")}
}

// Prepare validates that the job has somewhere to put its audio.
func (s *Stage) Prepare(_ context.Context, item *queue.Item) error {
	if strings.TrimSpace(item.WorkDir) == "" {
		return services.Wrap(services.ErrValidation, "acquisition", "prepare",
			"job "+item.Label()+" has no work directory", nil)
	}
	item.SetProgress("acquisition", "Fetching audio", 0)
	return nil
}

// Execute fetches and transcodes the job's audio, recording the result in
// item.AudioPath. A previously acquired file is reused.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	if existing := strings.TrimSpace(item.AudioPath); existing != "" {
		if _, err := os.Stat(existing); err == nil {
			logger.Info("reusing acquired audio", logging.String("audio_path", existing))
			item.SetProgressComplete("acquisition", "Audio ready")
			return nil
		}
	}

	src, err := stage.DecodeSource(item)
	if err != nil {
		return err
	}
	started := time.Now()
	fetched, err := s.acq.FetchLocalAudio(ctx, src, item.WorkDir)
	if err != nil {
		return err
	}
	item.SetProgress("acquisition", "Transcoding to 16 kHz mono", 50)
	audio, err := s.acq.TranscodeToStandardFormat(ctx, fetched)
	if err != nil {
		return err
	}
	item.AudioPath = audio
	item.SetProgressComplete("acquisition", "Audio ready")
	logger.Info("audio acquired",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("locator", src.Locator),
		logging.String("audio_file", filepath.Base(audio)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// HealthCheck reports readiness.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.acq == nil {
		return stage.NotReady("acquisition", "no acquisition service configured")
	}
	return stage.Ready("acquisition")
}
