package source_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"bobbin/internal/logging"
	"bobbin/internal/services"
	"bobbin/internal/source"
)

type stubResolver struct {
	results map[string][]source.Metadata
	errs    map[string]error
	calls   []string
}

func (s *stubResolver) Resolve(_ context.Context, locator string) ([]source.Metadata, error) {
	s.calls = append(s.calls, locator)
	if err := s.errs[locator]; err != nil {
		return nil, err
	}
	return s.results[locator], nil
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
  <title>Signal Hour</title>
  <description>A show</description>
  <item>
    <title>Episode One</title>
    <pubDate>Mon, 02 Jan 2023 10:00:00 GMT</pubDate>
    <itunes:episode>1</itunes:episode>
    <description><![CDATA[<p>We talk about <a href="https://example.com/paper">the paper</a>.</p><p>Second line</p>]]></description>
    <enclosure url="https://cdn.example.com/ep1.mp3" length="100" type="audio/mpeg"/>
  </item>
  <item>
    <title>Cover Art</title>
    <pubDate>Tue, 03 Jan 2023 10:00:00 GMT</pubDate>
    <enclosure url="https://cdn.example.com/cover.jpg" length="100" type="image/jpeg"/>
  </item>
  <item>
    <title>Episode Two</title>
    <pubDate>Wed, 04 Jan 2023 10:00:00 GMT</pubDate>
    <itunes:episode>two</itunes:episode>
    <enclosure url="https://cdn.example.com/ep2.m4a" length="100" type="audio/x-m4a"/>
  </item>
</channel>
</rss>`

func newClassifier(resolver source.Resolver) *source.Classifier {
	return source.NewClassifier(resolver, source.NewFeedFetcher(nil, "bobbin-test"), logging.NewNop())
}

func TestClassifyRSSSkipsNonAudioEnclosures(t *testing.T) {
	feedPath := filepath.Join(t.TempDir(), "show.rss")
	if err := os.WriteFile(feedPath, []byte(sampleFeed), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}

	src, err := newClassifier(nil).Classify(context.Background(), feedPath, source.Hints{CollectionPath: "/podcast/signal-hour/"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if src.Kind != source.KindRSS {
		t.Fatalf("expected rss kind, got %q", src.Kind)
	}
	if len(src.Entries) != 2 {
		t.Fatalf("expected 2 audio entries, got %d", len(src.Entries))
	}
	if len(src.Outcomes) != 1 || !src.Outcomes[0].IsSkip() || src.Outcomes[0].Title != "Cover Art" {
		t.Fatalf("expected one skip outcome for cover art, got %+v", src.Outcomes)
	}

	first := src.Entries[0]
	if first.Kind != source.KindAudio || first.Locator != "https://cdn.example.com/ep1.mp3" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if first.CollectionPath != "podcast/signal-hour" {
		t.Fatalf("collection path not normalized: %q", first.CollectionPath)
	}
	if first.EventDate == nil || first.EventDate.String() != "2023-01-02" {
		t.Fatalf("unexpected event date %v", first.EventDate)
	}
	if first.EpisodeNumber == nil || *first.EpisodeNumber != 1 {
		t.Fatalf("expected episode 1, got %v", first.EpisodeNumber)
	}
	if first.Description != "We talk about the paper.\nSecond line" {
		t.Fatalf("unexpected description %q", first.Description)
	}
	if len(first.AdditionalResources) != 1 || first.AdditionalResources[0].URL != "https://example.com/paper" {
		t.Fatalf("unexpected resources %+v", first.AdditionalResources)
	}
	if src.Entries[1].EpisodeNumber != nil {
		t.Fatal("non-numeric itunes episode should be ignored")
	}
	if got := len(src.Candidates()); got != 2 {
		t.Fatalf("expected 2 candidates, got %d", got)
	}
}

func TestClassifyRSSOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleFeed)
	}))
	defer server.Close()

	src, err := newClassifier(nil).Classify(context.Background(), server.URL+"/feed.xml?token=abc", source.Hints{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if src.Kind != source.KindRSS || src.Title != "Signal Hour" {
		t.Fatalf("unexpected source %+v", src)
	}
}

func TestClassifyPlaylistDropsPrivateEntries(t *testing.T) {
	const list = "https://www.youtube.com/playlist?list=PL1"
	resolver := &stubResolver{results: map[string][]source.Metadata{
		list: {
			{ID: "a1", Title: "Talk A", PlaylistTitle: "Conf"},
			{ID: "p1", Title: source.PrivateVideoTitle, PlaylistTitle: "Conf"},
			{URL: "https://www.youtube.com/watch?v=b2", Title: "Talk B", PlaylistTitle: "Conf"},
		},
	}}

	src, err := newClassifier(resolver).Classify(context.Background(), list, source.Hints{
		CollectionPath: "conf/2024",
		Tags:           []string{"go"},
		Speakers:       []string{"Ada"},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if src.Kind != source.KindPlaylist || src.Title != "Conf" {
		t.Fatalf("unexpected playlist %+v", src)
	}
	if len(src.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(src.Items))
	}
	for _, item := range src.Items {
		if item.Title == source.PrivateVideoTitle {
			t.Fatal("private entry should be dropped")
		}
		if item.Kind != source.KindVideo || item.CollectionPath != "conf/2024" {
			t.Fatalf("unexpected child %+v", item)
		}
		if len(item.Tags) != 1 || len(item.Speakers) != 1 {
			t.Fatalf("child should inherit tags and speakers: %+v", item.Record)
		}
	}
	if src.Items[0].Locator != "https://www.youtube.com/watch?v=a1" {
		t.Fatalf("unexpected child locator %q", src.Items[0].Locator)
	}
	if len(src.Outcomes) != 0 {
		t.Fatalf("private entries must not produce outcomes: %+v", src.Outcomes)
	}
}

func TestClassifyPlaylistChildFetchFailureIsSkip(t *testing.T) {
	const list = "https://www.youtube.com/playlist?list=PL2"
	resolver := &stubResolver{
		results: map[string][]source.Metadata{
			list: {
				{ID: "ok", Title: "Works", PlaylistTitle: "P"},
				{ID: "gone", Title: "Broken", PlaylistTitle: "P"},
			},
			"https://www.youtube.com/watch?v=ok": {
				{ID: "ok", Title: "Works", Description: "desc", Chapters: []source.Chapter{{Start: 60, Name: "B"}, {Start: 0, Name: "A"}}},
			},
		},
		errs: map[string]error{"https://www.youtube.com/watch?v=gone": errors.New("video unavailable")},
	}

	src, err := newClassifier(resolver).Classify(context.Background(), list, source.Hints{Preprocess: true})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(src.Items) != 1 || src.Items[0].Description != "desc" {
		t.Fatalf("unexpected items %+v", src.Items)
	}
	if chapters := src.Items[0].Chapters; len(chapters) != 2 || chapters[0].Name != "A" || chapters[0].Index != 0 {
		t.Fatalf("chapters not normalized: %+v", chapters)
	}
	if len(src.Outcomes) != 1 || !src.Outcomes[0].IsSkip() || src.Outcomes[0].Title != "Broken" {
		t.Fatalf("expected skip outcome for broken child, got %+v", src.Outcomes)
	}
}

func TestClassifyDecisionOrder(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "my_talk-final.MP3")
	video := filepath.Join(dir, "clip.mov")
	for _, p := range []string{audio, video} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	resolver := &stubResolver{results: map[string][]source.Metadata{
		"https://youtu.be/xyz": {{ID: "xyz", Title: "Single", UploadDate: source.DatePtr("20240105"), Complete: true}},
	}}
	c := newClassifier(resolver)
	ctx := context.Background()

	cases := []struct {
		name    string
		locator string
		hints   source.Hints
		kind    source.Kind
		title   string
	}{
		{"audio extension case-insensitive", audio, source.Hints{}, source.KindAudio, "My Talk Final"},
		{"remote audio with query", "https://cdn.example.com/a.m4a?sig=1", source.Hints{Title: "Remote"}, source.KindAudio, "Remote"},
		{"platform metadata supplied", "https://youtu.be/abc", source.Hints{Preprocess: true, Platform: &source.PlatformMetadata{Title: "Given"}}, source.KindVideo, "Given"},
		{"video container", video, source.Hints{}, source.KindVideo, "Clip"},
		{"resolver single", "https://youtu.be/xyz", source.Hints{}, source.KindVideo, "Single"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := c.Classify(ctx, tc.locator, tc.hints)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if src.Kind != tc.kind || src.Title != tc.title {
				t.Fatalf("got kind=%q title=%q", src.Kind, src.Title)
			}
		})
	}

	src, err := c.Classify(ctx, "https://youtu.be/abc", source.Hints{Preprocess: true, Platform: &source.PlatformMetadata{Title: "Given"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if src.NeedsPreprocessing {
		t.Fatal("supplied metadata should disable preprocessing")
	}
	for _, call := range resolver.calls {
		if call == "https://youtu.be/abc" {
			t.Fatal("resolver must not be called when metadata is supplied")
		}
	}

	single, err := c.Classify(ctx, "https://youtu.be/xyz", source.Hints{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if single.EventDate == nil || single.EventDate.String() != "2024-01-05" {
		t.Fatalf("expected upload date as event date, got %v", single.EventDate)
	}
}

func TestClassifyInvalidSources(t *testing.T) {
	resolver := &stubResolver{
		results: map[string][]source.Metadata{},
		errs:    map[string]error{"https://example.com/broken": errors.New("boom")},
	}
	c := newClassifier(resolver)
	ctx := context.Background()

	for _, locator := range []string{
		"",
		"https://example.com/broken",
		"https://example.com/nothing",
		filepath.Join(t.TempDir(), "missing.mp3"),
		filepath.Join(t.TempDir(), "notes.txt"),
	} {
		_, err := c.Classify(ctx, locator, source.Hints{})
		if !errors.Is(err, services.ErrInvalidSource) {
			t.Fatalf("locator %q: expected ErrInvalidSource, got %v", locator, err)
		}
	}
	if len(resolver.calls) != 2 {
		t.Fatalf("resolver should be called once per remote locator with no retries, got %v", resolver.calls)
	}
}

func TestMediaPrefersExternalLink(t *testing.T) {
	rec := source.Record{Locator: "https://cdn/a.mp3"}
	if rec.Media() != "https://cdn/a.mp3" {
		t.Fatalf("unexpected media %q", rec.Media())
	}
	rec.ExternalMediaLink = "https://youtube.com/watch?v=1"
	if rec.Media() != "https://youtube.com/watch?v=1" {
		t.Fatalf("unexpected media %q", rec.Media())
	}
}

func TestSourceJSONRoundTripKeepsKind(t *testing.T) {
	ep := 3
	src := source.Source{
		Kind:     source.KindAudio,
		Record:   source.Record{Locator: "/a.mp3", Title: "T", EventDate: source.DatePtr("2024-02-03"), EpisodeNumber: &ep},
		Chapters: []source.Chapter{{Index: 0, Start: 1.5, Name: "Intro"}},
	}
	data, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded source.Source
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Kind != source.KindAudio || decoded.EventDate.String() != "2024-02-03" || *decoded.EpisodeNumber != 3 {
		t.Fatalf("unexpected decoded source %+v", decoded)
	}
	if decoded.Slug() != "t" {
		t.Fatalf("unexpected slug %q", decoded.Slug())
	}
}

func TestNormalizeCollectionPath(t *testing.T) {
	cases := map[string]string{
		"/podcast/show/": "podcast/show",
		"podcast//show":  "podcast/show",
		`talks\2024`:     "talks/2024",
		"  ./a/./b  ":    "a/b",
		"":               "",
	}
	for in, want := range cases {
		if got := source.NormalizeCollectionPath(in); got != want {
			t.Errorf("NormalizeCollectionPath(%q) = %q, want %q", in, got, want)
		}
	}
}
