// Package export writes finished transcripts to their destinations: markdown
// with YAML front matter, JSON and plain text under the output directory, and
// optionally Google Drive. It also writes the metadata JSON produced by
// preprocess-only runs.
package export

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"bobbin/internal/config"
	"bobbin/internal/queue"
	"bobbin/internal/source"
)

// Options carries what every exporter needs besides the job.
type Options struct {
	OutputDir string
	Source    source.Source
	Now       time.Time
}

// Exporter writes one representation of a job and returns its location.
type Exporter interface {
	Name() string
	Export(ctx context.Context, item *queue.Item, opts Options) (string, error)
}

// NewExporters returns the exporters enabled in cfg, file formats first.
func NewExporters(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]Exporter, error) {
	exporters := make([]Exporter, 0, len(cfg.Export.Formats)+1)
	for _, format := range cfg.Export.Formats {
		switch format {
		case config.FormatMarkdown:
			exporters = append(exporters, Markdown{})
		case config.FormatJSON:
			exporters = append(exporters, JSON{})
		case config.FormatText:
			exporters = append(exporters, Text{})
		}
	}
	if cfg.Export.Drive.Enabled {
		drive, err := NewDrive(ctx, cfg.Export.Drive, logger)
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, drive)
	}
	return exporters, nil
}

// Document is the transcript plus the metadata shared by the markdown front
// matter and the JSON export.
type Document struct {
	Title               string            `json:"title" yaml:"title"`
	Date                string            `json:"date,omitempty" yaml:"date,omitempty"`
	Speakers            []string          `json:"speakers,omitempty" yaml:"speakers,omitempty"`
	Tags                []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Categories          []string          `json:"categories,omitempty" yaml:"categories,omitempty"`
	Type                string            `json:"type" yaml:"type"`
	Media               string            `json:"media" yaml:"media"`
	SourceFile          string            `json:"source_file" yaml:"source_file"`
	Summary             string            `json:"summary,omitempty" yaml:"summary,omitempty"`
	Episode             *int              `json:"episode,omitempty" yaml:"episode,omitempty"`
	Description         string            `json:"description,omitempty" yaml:"-"`
	Chapters            []source.Chapter  `json:"chapters,omitempty" yaml:"-"`
	AdditionalResources []source.Resource `json:"additional_resources,omitempty" yaml:"additional_resources,omitempty"`
	TranscribedAt       string            `json:"transcribed_at" yaml:"transcribed_at"`
	Transcript          string            `json:"transcript" yaml:"-"`
	RawTranscript       string            `json:"raw_transcript,omitempty" yaml:"-"`
}

// BuildDocument assembles the export view of a job.
func BuildDocument(item *queue.Item, src source.Source, now time.Time) Document {
	doc := Document{
		Title:               strings.TrimSpace(item.Title),
		Speakers:            src.Speakers,
		Tags:                mergeTags(src.Tags, item.SummaryTags),
		Categories:          src.Categories,
		Type:                string(src.Kind),
		Media:               item.Media,
		SourceFile:          src.Locator,
		Summary:             strings.TrimSpace(item.Summary),
		Episode:             src.EpisodeNumber,
		Description:         src.Description,
		Chapters:            chaptersOf(src),
		AdditionalResources: src.AdditionalResources,
		TranscribedAt:       now.UTC().Format(time.RFC3339),
		Transcript:          item.Text(),
	}
	if item.CorrectedText != "" {
		doc.RawTranscript = item.RawText
	}
	if d := eventDate(src); d != nil {
		doc.Date = d.String()
	}
	if doc.Description == "" && src.Platform != nil {
		doc.Description = src.Platform.Description
	}
	return doc
}

func eventDate(src source.Source) *source.Date {
	if src.EventDate != nil {
		return src.EventDate
	}
	if src.Platform != nil {
		return src.Platform.UploadDate
	}
	return nil
}

func chaptersOf(src source.Source) []source.Chapter {
	if len(src.Chapters) > 0 {
		return src.Chapters
	}
	if src.Platform != nil {
		return src.Platform.Chapters
	}
	return nil
}

func mergeTags(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			key := strings.ToLower(tag)
			if tag == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// targetPath is <output>/<collection>/<slug><ext>.
func targetPath(item *queue.Item, opts Options, ext string) string {
	return filepath.Join(item.OutputDir(opts.OutputDir), opts.Source.Slug()+ext)
}
