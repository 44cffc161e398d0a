package whisperx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Segment is one utterance from the WhisperX JSON output. Start and End are
// nil when alignment failed.
type Segment struct {
	Text    string   `json:"text"`
	Start   *float64 `json:"start"`
	End     *float64 `json:"end"`
	Speaker string   `json:"speaker,omitempty"`
	Words   []Word   `json:"words"`
}

// Word is one aligned token. Numbers and symbols often come back without
// timings.
type Word struct {
	Word    string   `json:"word"`
	Start   *float64 `json:"start,omitempty"`
	End     *float64 `json:"end,omitempty"`
	Speaker string   `json:"speaker,omitempty"`
}

// LoadSegments reads the segments from a WhisperX JSON file.
func LoadSegments(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Segments []Segment `json:"segments"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return doc.Segments, nil
}

// JoinText joins the non-empty segment texts with single spaces.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
