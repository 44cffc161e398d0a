package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"bobbin/internal/config"
	"bobbin/internal/fileutil"
	"bobbin/internal/queue"
	"bobbin/internal/services"
)

// Markdown writes <slug>.md with YAML front matter followed by the transcript.
type Markdown struct{}

// Name identifies the exporter.
func (Markdown) Name() string { return config.FormatMarkdown }

// Export writes the markdown file and records it on the item.
func (Markdown) Export(_ context.Context, item *queue.Item, opts Options) (string, error) {
	data, err := RenderMarkdown(BuildDocument(item, opts.Source, opts.Now))
	if err != nil {
		return "", services.Wrap(services.ErrExport, "export", "render markdown", item.Label(), err)
	}
	path := targetPath(item, opts, ".md")
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrExport, "export", "write markdown", path, err)
	}
	item.MarkdownPath = path
	return path, nil
}

// RenderMarkdown produces the front matter document.
func RenderMarkdown(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n\n")
	buf.WriteString(strings.TrimSpace(doc.Transcript))
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// JSON writes <slug>.json with the full document.
type JSON struct{}

// Name identifies the exporter.
func (JSON) Name() string { return config.FormatJSON }

// Export writes the JSON file and records it on the item.
func (JSON) Export(_ context.Context, item *queue.Item, opts Options) (string, error) {
	data, err := json.MarshalIndent(BuildDocument(item, opts.Source, opts.Now), "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrExport, "export", "encode json", item.Label(), err)
	}
	path := targetPath(item, opts, ".json")
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return "", services.Wrap(services.ErrExport, "export", "write json", path, err)
	}
	item.JSONPath = path
	return path, nil
}

// Text writes <slug>.txt with the transcript only.
type Text struct{}

// Name identifies the exporter.
func (Text) Name() string { return config.FormatText }

// Export writes the text file and records it on the item.
func (Text) Export(_ context.Context, item *queue.Item, opts Options) (string, error) {
	text := strings.TrimSpace(item.Text())
	if text == "" {
		return "", services.Wrap(services.ErrExport, "export", "write text",
			fmt.Sprintf("no transcript for %s", item.Label()), nil)
	}
	path := targetPath(item, opts, ".txt")
	if err := fileutil.WriteFileAtomic(path, []byte(text+"\n"), 0o644); err != nil {
		return "", services.Wrap(services.ErrExport, "export", "write text", path, err)
	}
	item.TextPath = path
	return path, nil
}
