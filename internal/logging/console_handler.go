package logging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// infoFieldLimit caps the fields an INFO line prints; the rest collapse into
// a "+ N more fields hidden" line.
const infoFieldLimit = 8

type field struct {
	key   string
	value slog.Value
}

type consoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// consoleHandler prints a one-line header followed by indented fields:
//
//	2026-01-02 15:04:05 INFO [workflow] Job #7 (export) – stage finished
//	    - duration: 1.2s
type consoleHandler struct {
	out    *consoleOutput
	level  *slog.LevelVar
	source bool
	fields []field
	prefix string
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, source bool) slog.Handler {
	return &consoleHandler{out: &consoleOutput{w: w}, level: lvl, source: source}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = appendFields(append([]field(nil), h.fields...), h.prefix, attrs)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	all := append([]field(nil), h.fields...)
	record.Attrs(func(attr slog.Attr) bool {
		all = appendFields(all, h.prefix, []slog.Attr{attr})
		return true
	})

	var component, itemID, stage string
	shown := make([]field, 0, len(all))
	index := make(map[string]int, len(all))
	for _, f := range all {
		switch f.key {
		case FieldComponent:
			component = rawValue(f.value)
			continue
		case FieldItemID:
			itemID = rawValue(f.value)
		case FieldStage:
			stage = rawValue(f.value)
		}
		if i, ok := index[f.key]; ok {
			shown[i].value = f.value
			continue
		}
		index[f.key] = len(shown)
		shown = append(shown, f)
	}

	var b strings.Builder
	b.WriteString(formatTimestamp(record.Time))
	b.WriteString(" " + levelLabel(record.Level))
	if component != "" {
		b.WriteString(" [" + component + "]")
	}
	if s := subject(itemID, stage); s != "" {
		b.WriteString(" " + s)
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	b.WriteString(" – " + message)
	if h.source {
		if src := record.Source(); src != nil && src.File != "" {
			b.WriteString(" [" + sourceLocation(src) + "]")
		}
	}
	b.WriteByte('\n')

	limit := len(shown)
	if record.Level == slog.LevelInfo {
		limit = min(limit, infoFieldLimit)
	}
	for _, f := range shown[:limit] {
		b.WriteString("    - " + f.key + ": " + displayValue(f.value) + "\n")
	}
	if hidden := len(shown) - limit; hidden == 1 {
		b.WriteString("    + 1 more field hidden\n")
	} else if hidden > 1 {
		b.WriteString("    + " + strconv.Itoa(hidden) + " more fields hidden\n")
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := io.WriteString(h.out.w, b.String())
	return err
}

// appendFields flattens attrs, joining group names with dots.
func appendFields(dst []field, prefix string, attrs []slog.Attr) []field {
	for _, attr := range attrs {
		if attr.Equal(slog.Attr{}) {
			continue
		}
		value := attr.Value.Resolve()
		if value.Kind() == slog.KindGroup {
			inner := prefix
			if attr.Key != "" {
				inner += attr.Key + "."
			}
			dst = appendFields(dst, inner, value.Group())
			continue
		}
		if attr.Key == "" {
			continue
		}
		dst = append(dst, field{key: prefix + attr.Key, value: value})
	}
	return dst
}
