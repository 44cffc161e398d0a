// Package transcription runs a speech-to-text backend over acquired audio and
// renders the result, combined with chapter markers, into one document.
package transcription

import (
	"regexp"
	"strconv"
	"strings"

	"bobbin/internal/merge"
	"bobbin/internal/source"
)

// Word is one aligned word. Timings are nil when alignment failed.
type Word struct {
	Text    string
	Start   *float64
	End     *float64
	Speaker string
}

// Segment is one utterance.
type Segment struct {
	Text    string
	Start   *float64
	End     *float64
	Speaker string
	Words   []Word
}

// Transcript is a backend's output.
type Transcript struct {
	Segments []Segment
	Diarized bool
	// Artifacts the backend left in the work directory.
	SRTPath  string
	JSONPath string
}

var speakerLabel = regexp.MustCompile(`(?i)^speaker[_ ]?0*(\d+)$`)

// NormalizeSpeaker turns backend labels such as "SPEAKER_01" into "1".
// Unrecognized labels are returned trimmed.
func NormalizeSpeaker(label string) string {
	label = strings.TrimSpace(label)
	if m := speakerLabel.FindStringSubmatch(label); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return strconv.Itoa(n)
		}
	}
	return label
}

// NormalizeSpeakers returns a copy with normalized labels, carrying the
// last known speaker onto segments and words that have none. Unlabelled
// leading entries take the first speaker that appears.
func NormalizeSpeakers(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	current := firstSpeaker(segments)
	for i, seg := range segments {
		seg.Speaker = NormalizeSpeaker(seg.Speaker)
		if seg.Speaker == "" {
			seg.Speaker = current
		}
		current = seg.Speaker
		if len(seg.Words) > 0 {
			words := make([]Word, len(seg.Words))
			for j, w := range seg.Words {
				w.Speaker = NormalizeSpeaker(w.Speaker)
				if w.Speaker == "" {
					w.Speaker = current
				}
				current = w.Speaker
				words[j] = w
			}
			seg.Words = words
		}
		out[i] = seg
	}
	return out
}

func firstSpeaker(segments []Segment) string {
	for _, seg := range segments {
		if label := NormalizeSpeaker(seg.Speaker); label != "" {
			return label
		}
		for _, w := range seg.Words {
			if label := NormalizeSpeaker(w.Speaker); label != "" {
				return label
			}
		}
	}
	return ""
}

// Elements converts a transcript into merge input. Diarized transcripts are
// emitted word by word so speaker turns can change mid-segment; a word that
// failed alignment borrows the previous timing (or its segment's start).
func Elements(segments []Segment, diarized bool) []merge.Element {
	var elements []merge.Element
	for _, seg := range segments {
		if !diarized || len(seg.Words) == 0 {
			elements = append(elements, merge.Element{
				Start:   seg.Start,
				End:     seg.End,
				Text:    seg.Text,
				Speaker: seg.Speaker,
			})
			continue
		}
		last := seg.Start
		for _, w := range seg.Words {
			start, end := w.Start, w.End
			if start == nil {
				start = last
			}
			if end == nil {
				end = start
			}
			if end != nil {
				last = end
			}
			elements = append(elements, merge.Element{
				Start:   start,
				End:     end,
				Text:    w.Text,
				Speaker: w.Speaker,
			})
		}
	}
	return elements
}

// Chapters converts source chapters into merge chapters, preserving order.
func Chapters(chapters []source.Chapter) []merge.Chapter {
	if len(chapters) == 0 {
		return nil
	}
	normalized := source.NormalizeChapters(chapters)
	out := make([]merge.Chapter, 0, len(normalized))
	for _, ch := range normalized {
		out = append(out, merge.Chapter{Start: ch.Start, Name: ch.Name})
	}
	return out
}

// Render merges the transcript with chapters. Without chapters the result is
// the same engine's single-paragraph output (or speaker turns when diarized).
func Render(t Transcript, chapters []source.Chapter) (string, error) {
	segments := NormalizeSpeakers(t.Segments)
	return merge.Merge(merge.Input{
		Chapters: Chapters(chapters),
		Elements: Elements(segments, t.Diarized),
		Diarized: t.Diarized,
	})
}
