package source

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ParseTimecode converts SS, MM:SS or HH:MM:SS (with optional fractional
// seconds) into seconds.
func ParseTimecode(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timecode")
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timecode %q", value)
	}
	var total float64
	for i, part := range parts {
		last := i == len(parts)-1
		var (
			n   float64
			err error
		)
		if last {
			n, err = strconv.ParseFloat(part, 64)
		} else {
			var whole int
			whole, err = strconv.Atoi(part)
			n = float64(whole)
		}
		if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("invalid timecode %q", value)
		}
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("invalid timecode %q: field out of range", value)
		}
		total = total*60 + n
	}
	return total, nil
}

// ParseChapterLine reads "<timecode> <name>" as written in show notes and
// the --chapter flag.
func ParseChapterLine(line string) (Chapter, error) {
	line = strings.TrimSpace(line)
	stamp, name, _ := strings.Cut(line, " ")
	start, err := ParseTimecode(stamp)
	if err != nil {
		return Chapter{}, err
	}
	name = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(name), "-–"))
	if name == "" {
		return Chapter{}, fmt.Errorf("chapter %q has no name", line)
	}
	return Chapter{Start: start, Name: name}, nil
}

// NormalizeChapters returns a copy sorted by start with contiguous indices
// starting at 0. Chapters sharing a start keep their input order.
func NormalizeChapters(chapters []Chapter) []Chapter {
	if len(chapters) == 0 {
		return nil
	}
	out := make([]Chapter, 0, len(chapters))
	for _, ch := range chapters {
		ch.Name = strings.TrimSpace(ch.Name)
		out = append(out, ch)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := range out {
		out[i].Index = i
	}
	return out
}
