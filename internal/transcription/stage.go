package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/source"
	"bobbin/internal/stage"
)

// Stage runs the backend and stores the merged document as the job's raw text.
type Stage struct {
	backend Backend
	logger  *slog.Logger
}

// NewStage builds the transcription stage handler.
func NewStage(backend Backend, logger *slog.Logger) *Stage {
	return &Stage{backend: backend, logger: logging.NewComponentLogger(logger, "transcription")}
}

// Prepare checks that acquisition produced audio.
func (s *Stage) Prepare(_ context.Context, item *queue.Item) error {
	if strings.TrimSpace(item.AudioPath) == "" {
		return services.Wrap(services.ErrValidation, "transcription", "prepare",
			fmt.Sprintf("no audio acquired for %s; run acquisition first", item.Label()), nil)
	}
	item.SetProgress("transcription", "Transcribing audio", 0)
	return nil
}

// Execute transcribes item.AudioPath and merges the result with the
// source's chapters.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	if _, err := os.Stat(item.AudioPath); err != nil {
		return services.Wrap(services.ErrTranscription, "transcription", "stat audio", item.AudioPath, err)
	}
	src, err := stage.DecodeSource(item)
	if err != nil {
		return err
	}

	if item.Diarize && !s.backend.SupportsDiarization() {
		logging.WarnWithContext(logger, "diarization requested but unavailable", "diarization_unavailable",
			logging.String("title", item.Title),
			logging.String(logging.FieldImpact, "transcript will not carry speaker labels"),
			logging.String(logging.FieldErrorHint, "enable transcription.diarize and set transcription.hf_token"),
		)
	}

	started := time.Now()
	transcript, err := s.backend.Transcribe(ctx, item.AudioPath, item.WorkDir)
	if err != nil {
		return err
	}
	transcript.Diarized = transcript.Diarized && item.Diarize

	chapters := ChaptersFor(src)
	text, err := Render(transcript, chapters)
	if err != nil {
		return services.Wrap(services.ErrMerge, "transcription", "merge chapters",
			fmt.Sprintf("cannot merge transcript of %s", item.Label()), err)
	}
	if strings.TrimSpace(text) == "" {
		return services.Wrap(services.ErrTranscription, "transcription", "validate",
			fmt.Sprintf("backend produced no text for %s", item.Label()), nil)
	}

	item.RawText = text
	item.SetProgressComplete("transcription", "Transcript ready")
	logger.Info("transcription complete",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("segments", len(transcript.Segments)),
		logging.Int("chapters", len(chapters)),
		logging.Bool("diarized", transcript.Diarized),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// ChaptersFor picks explicit chapters first, then platform chapters.
func ChaptersFor(src source.Source) []source.Chapter {
	if len(src.Chapters) > 0 {
		return src.Chapters
	}
	if src.Platform != nil {
		return src.Platform.Chapters
	}
	return nil
}

// HealthCheck reports readiness.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.backend == nil {
		return stage.NotReady("transcription", "no transcription backend configured")
	}
	return stage.Ready("transcription")
}
