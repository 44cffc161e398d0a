package merge

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"bobbin/internal/services"
)

// Chapter is a named section start in seconds.
type Chapter struct {
	Start float64
	Name  string
}

// Element is one transcript unit: an utterance, or a word when diarized.
// Start and End are seconds; nil means the backend did not report them.
type Element struct {
	Start   *float64
	End     *float64
	Text    string
	Speaker string
}

// Input bundles the merge arguments.
type Input struct {
	Chapters []Chapter
	Elements []Element
	// Diarized switches to word-level joining with speaker turn labels.
	Diarized bool
}

// Error reports malformed input at a specific position.
type Error struct {
	// Kind is "element" or "chapter".
	Kind   string
	Index  int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("merge: %s %d: %s", e.Kind, e.Index, e.Reason)
}

// Unwrap classifies merge errors under services.ErrMerge.
func (e *Error) Unwrap() error { return services.ErrMerge }

// Merge produces the combined document. Blocks are separated by a blank
// line and the result has no trailing newline.
func Merge(in Input) (string, error) {
	if err := validate(in); err != nil {
		return "", err
	}

	m := merger{diarized: in.Diarized}
	ci, ei := 0, 0
	for ci < len(in.Chapters) && ei < len(in.Elements) {
		if in.Chapters[ci].Start <= *in.Elements[ei].Start {
			m.heading(in.Chapters[ci].Name)
			ci++
			continue
		}
		m.consume(in.Elements[ei])
		ei++
	}
	for ; ci < len(in.Chapters); ci++ {
		m.heading(in.Chapters[ci].Name)
	}
	for ; ei < len(in.Elements); ei++ {
		m.consume(in.Elements[ei])
	}
	m.flush()
	return strings.Join(m.blocks, "\n\n"), nil
}

func validate(in Input) error {
	for i, ch := range in.Chapters {
		if math.IsNaN(ch.Start) || math.IsInf(ch.Start, 0) {
			return &Error{Kind: "chapter", Index: i, Reason: "start is not a number"}
		}
	}
	for i, el := range in.Elements {
		switch {
		case el.Start == nil:
			return &Error{Kind: "element", Index: i, Reason: "missing start time"}
		case el.End == nil:
			return &Error{Kind: "element", Index: i, Reason: "missing end time"}
		case math.IsNaN(*el.Start) || math.IsInf(*el.Start, 0):
			return &Error{Kind: "element", Index: i, Reason: "start time is not a number"}
		case math.IsNaN(*el.End) || math.IsInf(*el.End, 0):
			return &Error{Kind: "element", Index: i, Reason: "end time is not a number"}
		case *el.Start < 0:
			return &Error{Kind: "element", Index: i, Reason: "negative start time"}
		}
	}
	return nil
}

type merger struct {
	diarized   bool
	blocks     []string
	paragraph  strings.Builder
	tail       rune
	speaker    string
	hasSpeaker bool
}

func (m *merger) heading(name string) {
	m.flush()
	m.blocks = append(m.blocks, "## "+strings.TrimSpace(name))
}

func (m *merger) consume(el Element) {
	// An unlabelled element continues the current turn.
	if m.diarized && el.Speaker != "" && (!m.hasSpeaker || el.Speaker != m.speaker) {
		m.flush()
		m.blocks = append(m.blocks, fmt.Sprintf("Speaker %s: %s", el.Speaker, FormatTimestamp(*el.Start)))
		m.speaker = el.Speaker
		m.hasSpeaker = true
	}
	if m.diarized {
		word := strings.TrimSpace(el.Text)
		if word == "" {
			return
		}
		if m.paragraph.Len() > 0 {
			m.paragraph.WriteByte(' ')
		}
		m.paragraph.WriteString(word)
		return
	}
	m.appendVerbatim(el.Text)
}

// appendVerbatim adds utterance text unchanged, inserting one space only when
// neither side of the junction already has whitespace.
func (m *merger) appendVerbatim(text string) {
	if text == "" {
		return
	}
	if m.paragraph.Len() > 0 {
		first, _ := utf8.DecodeRuneInString(text)
		if !unicode.IsSpace(m.tail) && !unicode.IsSpace(first) {
			m.paragraph.WriteByte(' ')
		}
	}
	m.paragraph.WriteString(text)
	m.tail, _ = utf8.DecodeLastRuneInString(text)
}

func (m *merger) flush() {
	text := strings.TrimSpace(m.paragraph.String())
	m.paragraph.Reset()
	if text != "" {
		m.blocks = append(m.blocks, text)
	}
}

// FormatTimestamp renders seconds as HH:MM:SS, truncating fractions. Hours
// are not wrapped at 24.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	whole := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", whole/3600, (whole%3600)/60, whole%60)
}
