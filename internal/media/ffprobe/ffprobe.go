package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"
)

// Transcription input is 16 kHz mono signed 16-bit PCM in a WAV container.
const (
	StandardSampleRate = 16000
	StandardChannels   = 1
	StandardCodec      = "pcm_s16le"
	standardFormat     = "wav"
)

// Runner executes ffprobe and returns its stdout.
type Runner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// Result is the subset of `ffprobe -show_format -show_streams` bobbin reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

var probeArgs = []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--"}

// Inspect probes path with binary ("ffprobe" when blank). A nil run executes
// the binary directly.
func Inspect(ctx context.Context, run Runner, binary, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, binary, append(slices.Clone(probeArgs), path)...)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect %s: %w", path, err)
	}
	return Parse(out)
}

// Parse decodes ffprobe JSON output.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

func execRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// AudioStreams returns the audio streams in container order.
func (r Result) AudioStreams() []Stream {
	var audio []Stream
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "audio") {
			audio = append(audio, s)
		}
	}
	return audio
}

// IsStandardWAV reports whether the container holds exactly one stream in
// the transcription input format, so transcoding can be skipped.
func (r Result) IsStandardWAV() bool {
	audio := r.AudioStreams()
	if len(audio) != 1 || len(r.Streams) != 1 || !r.hasFormat(standardFormat) {
		return false
	}
	s := audio[0]
	rate, err := strconv.Atoi(strings.TrimSpace(s.SampleRate))
	return err == nil && rate == StandardSampleRate && s.Channels == StandardChannels && s.CodecName == StandardCodec
}

// format_name is a comma separated list of demuxer names.
func (r Result) hasFormat(name string) bool {
	for part := range strings.SplitSeq(r.Format.FormatName, ",") {
		if strings.EqualFold(strings.TrimSpace(part), name) {
			return true
		}
	}
	return false
}
