package whisperx

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"bobbin/internal/services"
)

// Runner executes an external command.
type Runner func(ctx context.Context, name string, args ...string) error

// Service runs WhisperX over local audio files.
type Service struct {
	cfg Config
	run Runner
}

// NewService creates a service for cfg.
func NewService(cfg Config) *Service {
	cfg.Tuning = cfg.Tuning.withDefaults()
	if cfg.VADMethod == "" {
		cfg.VADMethod = VADMethodSilero
	}
	return &Service{cfg: cfg, run: execRunner}
}

// WithCommandRunner replaces command execution.
func (s *Service) WithCommandRunner(run Runner) {
	if run != nil {
		s.run = run
	}
}

// Model returns the model name passed to WhisperX.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Diarize reports whether speakers will be attributed. The pyannote
// diarization models need a Hugging Face token.
func (s *Service) Diarize() bool {
	return s.cfg.Diarize && strings.TrimSpace(s.cfg.HFToken) != ""
}

// TranscribeResult holds a finished run's outputs.
type TranscribeResult struct {
	Text     string
	Segments []Segment
	JSONPath string
	// SRTPath is empty when WhisperX wrote no subtitles.
	SRTPath  string
	Diarized bool
}

// TranscribeFile transcribes a 16 kHz mono WAV into outputDir, which
// defaults to the audio's own directory.
func (s *Service) TranscribeFile(ctx context.Context, audio, outputDir string) (TranscribeResult, error) {
	if audio == "" {
		return TranscribeResult{}, services.Wrap(services.ErrValidation, "whisperx", "transcribe", "audio path required", nil)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(audio)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return TranscribeResult{}, fmt.Errorf("ensure whisperx output dir: %w", err)
	}
	if err := s.run(ctx, UVXCommand, s.arguments(audio, outputDir)...); err != nil {
		return TranscribeResult{}, services.Wrap(services.ErrExternalTool, "whisperx", "run", s.Model(), err)
	}

	stem := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
	result := TranscribeResult{
		JSONPath: filepath.Join(outputDir, stem+".json"),
		Diarized: s.Diarize(),
	}
	if srt := filepath.Join(outputDir, stem+".srt"); isFile(srt) {
		result.SRTPath = srt
	}
	segments, err := LoadSegments(result.JSONPath)
	if err != nil {
		return TranscribeResult{}, services.Wrap(services.ErrExternalTool, "whisperx", "load output", result.JSONPath, err)
	}
	result.Segments = segments
	result.Text = JoinText(segments)
	return result, nil
}

// arguments builds the uvx command line: package index, model and decoder
// tuning, VAD, speakers, language and device.
func (s *Service) arguments(audio, outputDir string) []string {
	c, t := s.cfg, s.cfg.Tuning
	var args []string

	if c.CUDAEnabled {
		args = append(args, "--index-url", cudaIndex, "--extra-index-url", pypiIndex)
	} else {
		args = append(args, "--index-url", pypiIndex)
	}

	args = append(args, "whisperx", audio,
		"--model", s.Model(),
		"--output_dir", outputDir,
		"--output_format", "all",
		"--segment_resolution", "sentence",
		"--batch_size", t.BatchSize,
		"--chunk_size", t.ChunkSize,
		"--beam_size", t.BeamSize,
		"--best_of", t.BestOf,
		"--temperature", t.Temperature,
		"--patience", t.Patience,
		"--vad_method", c.VADMethod,
		"--vad_onset", t.VADOnset,
		"--vad_offset", t.VADOffset,
	)

	if c.HFToken != "" && (c.VADMethod == VADMethodPyannote || s.Diarize()) {
		args = append(args, "--hf_token", c.HFToken)
	}
	if s.Diarize() {
		args = append(args, "--diarize")
		if c.MinSpeakers > 0 {
			args = append(args, "--min_speakers", strconv.Itoa(c.MinSpeakers))
		}
		if c.MaxSpeakers > 0 {
			args = append(args, "--max_speakers", strconv.Itoa(c.MaxSpeakers))
		}
	}
	if lang := strings.ToLower(strings.TrimSpace(c.Language)); len(lang) == 2 {
		args = append(args, "--language", lang)
	}
	if c.CUDAEnabled {
		return append(args, "--device", "cuda")
	}
	return append(args, "--device", "cpu", "--compute_type", "float32")
}

func execRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// pyannote checkpoints fail to load under torch's weights-only default.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLines(string(output), 20))
	}
	return nil
}

// lastLines keeps the tail of a tool's output, where the traceback ends.
func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
