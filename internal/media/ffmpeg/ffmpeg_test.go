package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bobbin/internal/media/ffmpeg"
	"bobbin/internal/services"
	"bobbin/internal/testsupport"
)

const (
	mp3Probe = `{"streams":[{"codec_name":"mp3","codec_type":"audio","sample_rate":"44100","channels":2}],"format":{"format_name":"mp3"}}`
	wavProbe = `{"streams":[{"codec_name":"pcm_s16le","codec_type":"audio","sample_rate":"16000","channels":1}],"format":{"format_name":"wav"}}`
	vidProbe = `{"streams":[{"codec_name":"h264","codec_type":"video"}],"format":{"format_name":"mov,mp4"}}`
)

// fakeProbe answers from file contents so a transcoded file looks standard.
func fakeProbe(_ context.Context, _ string, args ...string) ([]byte, error) {
	path := args[len(args)-1]
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasPrefix(string(data), "WAV"):
		return []byte(wavProbe), nil
	case strings.HasPrefix(string(data), "VID"):
		return []byte(vidProbe), nil
	default:
		return []byte(mp3Probe), nil
	}
}

func TestToStandardWAVTranscodesOnce(t *testing.T) {
	dir := t.TempDir()
	src := testsupport.WriteText(t, filepath.Join(dir, "episode.mp3"), "MP3")

	calls := 0
	run := func(_ context.Context, binary string, args ...string) error {
		calls++
		if binary != "ffmpeg" {
			t.Fatalf("unexpected binary %q", binary)
		}
		joined := strings.Join(args, " ")
		for _, want := range []string{"-ac 1", "-ar 16000", "-c:a pcm_s16le", "-i " + src} {
			if !strings.Contains(joined, want) {
				t.Fatalf("missing %q in %q", want, joined)
			}
		}
		return os.WriteFile(args[len(args)-1], []byte("WAV"), 0o644)
	}
	tr := ffmpeg.NewTranscoder("", "").WithRunners(run, fakeProbe)

	out, err := tr.ToStandardWAV(context.Background(), src)
	if err != nil {
		t.Fatalf("ToStandardWAV: %v", err)
	}
	if out != ffmpeg.StandardPath(src) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(out + ".part.wav"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed, stat err %v", err)
	}

	again, err := tr.ToStandardWAV(context.Background(), src)
	if err != nil || again != out {
		t.Fatalf("second call: %q, %v", again, err)
	}
	if calls != 1 {
		t.Fatalf("expected ffmpeg to run once, ran %d times", calls)
	}
}

func TestToStandardWAVKeepsStandardInput(t *testing.T) {
	src := testsupport.WriteText(t, filepath.Join(t.TempDir(), "ready.wav"), "WAV")
	run := func(context.Context, string, ...string) error {
		t.Fatal("ffmpeg should not run for standard input")
		return nil
	}
	out, err := ffmpeg.NewTranscoder("", "").WithRunners(run, fakeProbe).ToStandardWAV(context.Background(), src)
	if err != nil || out != src {
		t.Fatalf("expected input path back, got %q, %v", out, err)
	}
}

func TestToStandardWAVFailures(t *testing.T) {
	dir := t.TempDir()
	tr := ffmpeg.NewTranscoder("", "").WithRunners(func(context.Context, string, ...string) error {
		return errors.New("exit status 1")
	}, fakeProbe)

	if _, err := tr.ToStandardWAV(context.Background(), filepath.Join(dir, "missing.mp3")); !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected acquisition error for missing file, got %v", err)
	}

	video := testsupport.WriteText(t, filepath.Join(dir, "silent.mp4"), "VID")
	if _, err := tr.ToStandardWAV(context.Background(), video); err == nil || !strings.Contains(err.Error(), "no audio stream") {
		t.Fatalf("expected no audio stream error, got %v", err)
	}

	src := testsupport.WriteText(t, filepath.Join(dir, "bad.mp3"), "MP3")
	_, err := tr.ToStandardWAV(context.Background(), src)
	if !errors.Is(err, services.ErrAcquisition) || !strings.Contains(err.Error(), src) {
		t.Fatalf("expected acquisition error naming source, got %v", err)
	}
}
