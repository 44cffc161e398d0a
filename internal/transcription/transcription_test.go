package transcription_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/services/whisperx"
	"bobbin/internal/source"
	"bobbin/internal/testsupport"
	"bobbin/internal/transcription"
)

func fp(v float64) *float64 { return &v }

type fakeBackend struct {
	transcript transcription.Transcript
	err        error
	diarize    bool
	calls      int
}

func (f *fakeBackend) Transcribe(context.Context, string, string) (transcription.Transcript, error) {
	f.calls++
	return f.transcript, f.err
}

func (f *fakeBackend) SupportsDiarization() bool { return f.diarize }

func TestNormalizeSpeaker(t *testing.T) {
	cases := map[string]string{
		"SPEAKER_00": "0",
		"SPEAKER_12": "12",
		"speaker 3":  "3",
		" Alice ":    "Alice",
		"":           "",
	}
	for in, want := range cases {
		if got := transcription.NormalizeSpeaker(in); got != want {
			t.Fatalf("NormalizeSpeaker(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeSpeakersCarriesForward(t *testing.T) {
	in := []transcription.Segment{
		{Speaker: "SPEAKER_01", Words: []transcription.Word{{Text: "a"}, {Text: "b", Speaker: "SPEAKER_00"}}},
		{Words: []transcription.Word{{Text: "c"}}},
	}
	out := transcription.NormalizeSpeakers(in)
	if out[0].Words[0].Speaker != "1" || out[0].Words[1].Speaker != "0" {
		t.Fatalf("unexpected first segment words %+v", out[0].Words)
	}
	if out[1].Speaker != "0" || out[1].Words[0].Speaker != "0" {
		t.Fatalf("expected speaker carried forward, got %+v", out[1])
	}
	if in[0].Speaker != "SPEAKER_01" {
		t.Fatal("input was mutated")
	}
}

func TestNormalizeSpeakersBackfillsLeadingWords(t *testing.T) {
	in := []transcription.Segment{
		{Words: []transcription.Word{{Text: "so"}, {Text: "welcome", Speaker: "SPEAKER_02"}}},
		{Speaker: "SPEAKER_00", Words: []transcription.Word{{Text: "thanks"}}},
	}
	out := transcription.NormalizeSpeakers(in)
	if out[0].Speaker != "2" || out[0].Words[0].Speaker != "2" || out[0].Words[1].Speaker != "2" {
		t.Fatalf("expected leading words to take the first speaker, got %+v", out[0])
	}
	if out[1].Words[0].Speaker != "0" {
		t.Fatalf("unexpected second segment %+v", out[1])
	}
}

func TestRenderWithChapters(t *testing.T) {
	tr := transcription.Transcript{Segments: []transcription.Segment{
		{Start: fp(0), End: fp(5), Text: "hello"},
		{Start: fp(10), End: fp(15), Text: "world"},
	}}
	chapters := []source.Chapter{{Start: 10, Name: "Body"}, {Start: 0, Name: "Intro"}}
	got, err := transcription.Render(tr, chapters)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if want := "## Intro\n\nhello\n\n## Body\n\nworld"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderDiarizedFillsUnalignedWords(t *testing.T) {
	tr := transcription.Transcript{Diarized: true, Segments: []transcription.Segment{
		{Start: fp(0), End: fp(2), Speaker: "SPEAKER_00", Words: []transcription.Word{
			{Text: "It", Start: fp(0), End: fp(0.4), Speaker: "SPEAKER_00"},
			{Text: "2024"},
			{Text: "works", Start: fp(1), End: fp(2), Speaker: "SPEAKER_01"},
		}},
	}}
	got, err := transcription.Render(tr, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "Speaker 0: 00:00:00\n\nIt 2024\n\nSpeaker 1: 00:00:01\n\nworks"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderRejectsUntimedSegment(t *testing.T) {
	tr := transcription.Transcript{Segments: []transcription.Segment{{Text: "x"}}}
	if _, err := transcription.Render(tr, nil); !errors.Is(err, services.ErrMerge) {
		t.Fatalf("expected merge error, got %v", err)
	}
}

func newItem(t *testing.T, src source.Source, diarize bool) *queue.Item {
	t.Helper()
	dir := t.TempDir()
	encoded, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &queue.Item{
		ID:         7,
		Title:      src.Title,
		SourceJSON: string(encoded),
		WorkDir:    dir,
		AudioPath:  testsupport.WriteMedia(t, filepath.Join(dir, "source.16k.wav"), 64),
		Diarize:    diarize,
	}
}

func TestStageUsesPlatformChapters(t *testing.T) {
	backend := &fakeBackend{transcript: transcription.Transcript{Segments: []transcription.Segment{
		{Start: fp(1), End: fp(2), Text: "welcome"},
	}}}
	src := source.Source{
		Kind:     source.KindVideo,
		Record:   source.Record{Locator: "https://youtu.be/x", Title: "Talk"},
		Platform: &source.PlatformMetadata{Chapters: []source.Chapter{{Start: 0, Name: "Opening"}}},
	}
	item := newItem(t, src, false)
	st := transcription.NewStage(backend, logging.NewNop())

	if err := st.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.RawText != "## Opening\n\nwelcome" {
		t.Fatalf("unexpected raw text %q", item.RawText)
	}
}

func TestStageIgnoresDiarizationWhenJobDoesNotRequestIt(t *testing.T) {
	backend := &fakeBackend{diarize: true, transcript: transcription.Transcript{Diarized: true, Segments: []transcription.Segment{
		{Start: fp(0), End: fp(1), Text: "plain text", Speaker: "SPEAKER_00", Words: []transcription.Word{{Text: "plain", Start: fp(0), End: fp(0.5)}}},
	}}}
	item := newItem(t, source.Source{Kind: source.KindAudio, Record: source.Record{Locator: "/a.mp3", Title: "A"}}, false)
	if err := transcription.NewStage(backend, nil).Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.RawText != "plain text" {
		t.Fatalf("expected undiarized output, got %q", item.RawText)
	}
}

func TestStageFailures(t *testing.T) {
	src := source.Source{Kind: source.KindAudio, Record: source.Record{Locator: "/a.mp3", Title: "A"}}

	st := transcription.NewStage(&fakeBackend{}, nil)
	if err := st.Prepare(context.Background(), &queue.Item{Title: "A"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error without audio, got %v", err)
	}

	failing := &fakeBackend{err: services.Wrap(services.ErrTranscription, "transcription", "whisperx", "boom", nil)}
	item := newItem(t, src, false)
	if err := transcription.NewStage(failing, nil).Execute(context.Background(), item); !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}

	empty := &fakeBackend{transcript: transcription.Transcript{Segments: []transcription.Segment{{Start: fp(0), End: fp(1), Text: "  "}}}}
	err := transcription.NewStage(empty, nil).Execute(context.Background(), newItem(t, src, false))
	if !errors.Is(err, services.ErrTranscription) || !strings.Contains(err.Error(), "A") {
		t.Fatalf("expected empty transcript error naming the job, got %v", err)
	}
}

func TestWhisperXBackendParsesOutput(t *testing.T) {
	dir := t.TempDir()
	audio := testsupport.WriteMedia(t, filepath.Join(dir, "source.16k.wav"), 64)
	svc := whisperx.NewService(whisperx.Config{Diarize: true, HFToken: "hf_test"})
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name != whisperx.UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "--diarize") {
			t.Fatalf("expected --diarize in %q", joined)
		}
		payload := `{"segments":[{"text":" Hi there","start":0.5,"end":1.5,"speaker":"SPEAKER_00",` +
			`"words":[{"word":"Hi","start":0.5,"end":0.9,"speaker":"SPEAKER_00"},{"word":"there","start":1.0,"end":1.5,"speaker":"SPEAKER_00"}]}]}`
		return os.WriteFile(filepath.Join(dir, "source.16k.json"), []byte(payload), 0o644)
	})
	backend := transcription.NewWhisperXBackendWithService(svc)
	if !backend.SupportsDiarization() {
		t.Fatal("expected diarization support with token")
	}
	tr, err := backend.Transcribe(context.Background(), audio, dir)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !tr.Diarized || len(tr.Segments) != 1 || len(tr.Segments[0].Words) != 2 {
		t.Fatalf("unexpected transcript %+v", tr)
	}
	got, err := transcription.Render(tr, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Speaker 0: 00:00:00\n\nHi there" {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestWhisperXBackendWrapsFailure(t *testing.T) {
	svc := whisperx.NewService(whisperx.Config{})
	svc.WithCommandRunner(func(context.Context, string, ...string) error { return errors.New("exit status 1") })
	_, err := transcription.NewWhisperXBackendWithService(svc).Transcribe(context.Background(), "/tmp/a.wav", t.TempDir())
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}
