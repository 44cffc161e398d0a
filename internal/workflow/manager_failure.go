package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, stageName string, item *queue.Item, stageErr error) {
	message := classifyStageFailure(stageName, stageErr)
	kind := services.FailureKind(stageErr)
	item.SetFailed(message, kind)

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Alert("stage_failure"),
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorKind, kind),
		logging.String(logging.FieldErrorHint, failureHint(kind)),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastError(stageErr)
	m.setLastItem(item)
	m.notifyStageError(ctx, stageName, item, stageErr)
}

func classifyStageFailure(stageName string, stageErr error) string {
	message := ""
	if stageErr != nil {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message != "" {
		return message
	}
	if stageName != "" {
		return fmt.Sprintf("%s failed", stageName)
	}
	return "workflow failed"
}

func failureHint(kind string) string {
	switch kind {
	case "acquisition", "external_tool":
		return "check the locator is reachable and yt-dlp/ffmpeg are installed (bobbin deps)"
	case "transcription":
		return "check the whisperx installation and the job log"
	case "merge":
		return "the transcript has segments without timestamps; rerun transcription"
	case "postprocess":
		return "check the LLM API key and model, or disable post-processing"
	case "export":
		return "check the output directory and exporter credentials"
	case "configuration":
		return "fix the configuration and run bobbin config validate"
	default:
		return "inspect the job with bobbin queue status and retry it"
	}
}
