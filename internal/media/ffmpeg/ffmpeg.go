// Package ffmpeg converts media into the 16 kHz mono PCM WAV input the
// transcription backend expects.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"bobbin/internal/media/ffprobe"
	"bobbin/internal/services"
)

// Runner executes a command to completion.
type Runner func(ctx context.Context, binary string, args ...string) error

// Transcoder wraps the ffmpeg and ffprobe binaries.
type Transcoder struct {
	FFmpegBinary  string
	FFprobeBinary string

	run   Runner
	probe ffprobe.Runner
}

// NewTranscoder returns a transcoder using the given binaries.
func NewTranscoder(ffmpegBinary, ffprobeBinary string) *Transcoder {
	return &Transcoder{
		FFmpegBinary:  orDefault(ffmpegBinary, "ffmpeg"),
		FFprobeBinary: orDefault(ffprobeBinary, "ffprobe"),
	}
}

// WithRunners replaces the command runners (for testing).
func (t *Transcoder) WithRunners(run Runner, probe ffprobe.Runner) *Transcoder {
	t.run = run
	t.probe = probe
	return t
}

// StandardPath is where the transcoded copy of path is written.
func StandardPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(filepath.Dir(path), base+".16k.wav")
}

// ToStandardWAV returns a path holding path's audio as 16 kHz mono PCM WAV.
// Files already in that format are returned unchanged, and an existing
// transcoded copy is reused.
func (t *Transcoder) ToStandardWAV(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "transcode", path, err)
	}

	probe, err := ffprobe.Inspect(ctx, t.probe, t.FFprobeBinary, path)
	if err == nil && probe.IsStandardWAV() {
		return path, nil
	}
	if err == nil && len(probe.AudioStreams()) == 0 {
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "transcode",
			fmt.Sprintf("%s has no audio stream", path), nil)
	}

	target := StandardPath(path)
	if existing, probeErr := ffprobe.Inspect(ctx, t.probe, t.FFprobeBinary, target); probeErr == nil && existing.IsStandardWAV() {
		return target, nil
	}

	tmp := target + ".part.wav"
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vn",
		"-sn",
		"-dn",
		"-ac", strconv.Itoa(ffprobe.StandardChannels),
		"-ar", strconv.Itoa(ffprobe.StandardSampleRate),
		"-c:a", ffprobe.StandardCodec,
		tmp,
	}
	if err := t.runCommand(ctx, t.FFmpegBinary, args...); err != nil {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "transcode",
			fmt.Sprintf("ffmpeg failed for %s", path), err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrAcquisition, "acquisition", "transcode", "finalize "+target, err)
	}
	return target, nil
}

func (t *Transcoder) runCommand(ctx context.Context, binary string, args ...string) error {
	if t.run != nil {
		return t.run(ctx, binary, args...)
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
