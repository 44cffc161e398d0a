package ffprobe

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const standardProbe = `{
  "streams": [{"index": 0, "codec_name": "pcm_s16le", "codec_type": "audio", "sample_rate": "16000", "channels": 1}],
  "format": {"filename": "a.wav", "duration": "12.500000", "size": "400044", "format_name": "wav"}
}`

func TestInspectUsesRunner(t *testing.T) {
	var gotArgs []string
	run := func(_ context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "ffprobe" {
			t.Fatalf("unexpected binary %q", binary)
		}
		gotArgs = args
		return []byte(standardProbe), nil
	}
	result, err := Inspect(context.Background(), run, "", "/tmp/a.wav")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if gotArgs[len(gotArgs)-1] != "/tmp/a.wav" || gotArgs[len(gotArgs)-2] != "--" {
		t.Fatalf("path not passed after --: %v", gotArgs)
	}
	if !result.IsStandardWAV() {
		t.Fatalf("expected standard wav, got %+v", result)
	}
	if len(result.AudioStreams()) != 1 || result.Format.Duration != "12.500000" {
		t.Fatalf("unexpected probe %+v", result)
	}
}

func TestInspectErrors(t *testing.T) {
	if _, err := Inspect(context.Background(), nil, "", " "); err == nil {
		t.Fatal("expected error for empty path")
	}
	failing := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	_, err := Inspect(context.Background(), failing, "ffprobe", "/tmp/x.mp3")
	if err == nil || !strings.Contains(err.Error(), "/tmp/x.mp3") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
	garbage := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("not json"), nil
	}
	if _, err := Inspect(context.Background(), garbage, "ffprobe", "/tmp/x.mp3"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestIsStandardWAV(t *testing.T) {
	audio := func(codec, rate string, channels int) Stream {
		return Stream{CodecType: "audio", CodecName: codec, SampleRate: rate, Channels: channels}
	}
	cases := []struct {
		name   string
		result Result
		want   bool
	}{
		{"standard", Result{Streams: []Stream{audio("pcm_s16le", "16000", 1)}, Format: Format{FormatName: "wav"}}, true},
		{"stereo", Result{Streams: []Stream{audio("pcm_s16le", "16000", 2)}, Format: Format{FormatName: "wav"}}, false},
		{"44k", Result{Streams: []Stream{audio("pcm_s16le", "44100", 1)}, Format: Format{FormatName: "wav"}}, false},
		{"mp3", Result{Streams: []Stream{audio("mp3", "16000", 1)}, Format: Format{FormatName: "mp3"}}, false},
		{"video", Result{Streams: []Stream{{CodecType: "video"}, audio("pcm_s16le", "16000", 1)}, Format: Format{FormatName: "wav"}}, false},
		{"no streams", Result{Format: Format{FormatName: "wav"}}, false},
	}
	for _, tc := range cases {
		if got := tc.result.IsStandardWAV(); got != tc.want {
			t.Fatalf("%s: IsStandardWAV = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAudioStreamsSkipsOtherTypes(t *testing.T) {
	result := Result{Streams: []Stream{{Index: 0, CodecType: "video"}, {Index: 1, CodecType: "Audio"}, {Index: 2, CodecType: "subtitle"}}}
	audio := result.AudioStreams()
	if len(audio) != 1 || audio[0].Index != 1 {
		t.Fatalf("unexpected audio streams %+v", audio)
	}
	if (Result{}).AudioStreams() != nil {
		t.Fatal("expected nil for no streams")
	}
}

func TestIsStandardWAVAcceptsFormatList(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio", CodecName: "pcm_s16le", SampleRate: " 16000 ", Channels: 1}},
		Format:  Format{FormatName: "wav,w64"},
	}
	if !result.IsStandardWAV() {
		t.Fatal("expected wav in a demuxer list to match")
	}
}
