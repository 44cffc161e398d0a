package transcription

import (
	"context"
	"fmt"

	"bobbin/internal/config"
	"bobbin/internal/services"
	"bobbin/internal/services/whisperx"
)

// Backend is a speech-to-text engine.
type Backend interface {
	Transcribe(ctx context.Context, audioPath, workDir string) (Transcript, error)
	SupportsDiarization() bool
}

// WhisperXBackend adapts the WhisperX service.
type WhisperXBackend struct {
	svc *whisperx.Service
}

// NewWhisperXBackend builds the backend from transcription settings.
func NewWhisperXBackend(cfg config.Transcription) *WhisperXBackend {
	return NewWhisperXBackendWithService(whisperx.NewService(whisperx.Config{
		Model:       cfg.Model,
		CUDAEnabled: cfg.CUDAEnabled,
		VADMethod:   cfg.VADMethod,
		HFToken:     cfg.HFToken,
		Language:    cfg.Language,
		Diarize:     cfg.Diarize,
		MinSpeakers: cfg.MinSpeakers,
		MaxSpeakers: cfg.MaxSpeakers,
	}))
}

// NewWhisperXBackendWithService wraps an existing service (used in tests).
func NewWhisperXBackendWithService(svc *whisperx.Service) *WhisperXBackend {
	return &WhisperXBackend{svc: svc}
}

// Model returns the configured model name.
func (b *WhisperXBackend) Model() string { return b.svc.Model() }

// SupportsDiarization reports whether WhisperX will attribute speakers.
func (b *WhisperXBackend) SupportsDiarization() bool { return b.svc.Diarize() }

// Transcribe runs WhisperX over audioPath, writing its outputs to workDir.
func (b *WhisperXBackend) Transcribe(ctx context.Context, audioPath, workDir string) (Transcript, error) {
	result, err := b.svc.TranscribeFile(ctx, audioPath, workDir)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcription", "whisperx",
			fmt.Sprintf("transcribe %s", audioPath), err)
	}
	return Transcript{
		Segments: convertSegments(result.Segments),
		Diarized: result.Diarized,
		SRTPath:  result.SRTPath,
		JSONPath: result.JSONPath,
	}, nil
}

func convertSegments(in []whisperx.Segment) []Segment {
	out := make([]Segment, 0, len(in))
	for _, seg := range in {
		converted := Segment{Text: seg.Text, Start: seg.Start, End: seg.End, Speaker: seg.Speaker}
		if len(seg.Words) > 0 {
			converted.Words = make([]Word, 0, len(seg.Words))
			for _, w := range seg.Words {
				converted.Words = append(converted.Words, Word{Text: w.Word, Start: w.Start, End: w.End, Speaker: w.Speaker})
			}
		}
		out = append(out, converted)
	}
	return out
}
