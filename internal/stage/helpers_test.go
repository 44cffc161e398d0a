package stage_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/source"
	"bobbin/internal/stage"
)

func TestDecodeSourceRoundTrip(t *testing.T) {
	src := source.Source{Kind: source.KindAudio, Record: source.Record{Locator: "https://example.com/a.mp3", Title: "A"}}
	payload, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := stage.DecodeSource(&queue.Item{ID: 1, SourceJSON: string(payload)})
	if err != nil {
		t.Fatalf("DecodeSource: %v", err)
	}
	if got.Kind != source.KindAudio || got.Title != "A" {
		t.Fatalf("unexpected source %+v", got)
	}
}

func TestDecodeSourceRejectsMissingOrBrokenPayload(t *testing.T) {
	cases := map[string]*queue.Item{
		"nil":     nil,
		"empty":   {ID: 2, Title: "Empty"},
		"garbage": {ID: 3, Title: "Broken", SourceJSON: "{not json"},
	}
	for name, item := range cases {
		_, err := stage.DecodeSource(item)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
		if item != nil && !strings.Contains(err.Error(), item.Title) {
			t.Fatalf("%s: expected job label in %v", name, err)
		}
	}
}

func TestHealthConstructors(t *testing.T) {
	if h := stage.Ready("export"); !h.Ready || h.Detail != "" {
		t.Fatalf("unexpected ready health %+v", h)
	}
	if h := stage.NotReady("export", "no exporters"); h.Ready || h.Detail != "no exporters" {
		t.Fatalf("unexpected not-ready health %+v", h)
	}
}
