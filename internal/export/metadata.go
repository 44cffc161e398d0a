package export

import (
	"encoding/json"
	"path/filepath"

	"bobbin/internal/fileutil"
	"bobbin/internal/services"
	"bobbin/internal/source"
	"bobbin/internal/textutil"
)

// MetadataSchemaVersion is written into every metadata document.
const MetadataSchemaVersion = 1

// Metadata is the preprocess-only output for one source. Field order is the
// stable key order of the written JSON.
type Metadata struct {
	SchemaVersion       int               `json:"schema_version"`
	Title               string            `json:"title"`
	Speakers            []string          `json:"speakers"`
	Tags                []string          `json:"tags"`
	Categories          []string          `json:"categories"`
	Type                string            `json:"type"`
	Loc                 string            `json:"loc"`
	SourceFile          string            `json:"source_file"`
	Media               string            `json:"media"`
	Chapters            []source.Chapter  `json:"chapters"`
	Description         string            `json:"description,omitempty"`
	Date                string            `json:"date,omitempty"`
	Summary             string            `json:"summary,omitempty"`
	Episode             *int              `json:"episode,omitempty"`
	AdditionalResources []source.Resource `json:"additional_resources,omitempty"`
}

// BuildMetadata converts a classified candidate into its metadata document.
func BuildMetadata(src source.Source) Metadata {
	meta := Metadata{
		SchemaVersion:       MetadataSchemaVersion,
		Title:               src.Title,
		Speakers:            nonNil(src.Speakers),
		Tags:                nonNil(src.Tags),
		Categories:          nonNil(src.Categories),
		Type:                string(src.Kind),
		Loc:                 src.CollectionPath,
		SourceFile:          src.Locator,
		Media:               src.Media(),
		Chapters:            chaptersOf(src),
		Description:         src.Description,
		Summary:             src.Summary,
		Episode:             src.EpisodeNumber,
		AdditionalResources: src.AdditionalResources,
	}
	if meta.Chapters == nil {
		meta.Chapters = []source.Chapter{}
	}
	if src.Platform != nil {
		if meta.Description == "" {
			meta.Description = src.Platform.Description
		}
		meta.Tags = mergeTags(meta.Tags, src.Platform.Tags)
		meta.Categories = mergeTags(meta.Categories, src.Platform.Categories)
		meta.Tags = nonNil(meta.Tags)
		meta.Categories = nonNil(meta.Categories)
	}
	if d := eventDate(src); d != nil {
		meta.Date = d.String()
	}
	return meta
}

// MetadataPath is <output>/<collection>/metadata/<slug>.json.
func MetadataPath(outputDir string, src source.Source) string {
	parts := append([]string{outputDir}, textutil.SanitizePathSegments(src.CollectionPath)...)
	parts = append(parts, "metadata", src.Slug()+".json")
	return filepath.Join(parts...)
}

// WriteMetadata writes the metadata document for src and returns its path.
func WriteMetadata(outputDir string, src source.Source) (string, error) {
	data, err := json.MarshalIndent(BuildMetadata(src), "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrExport, "preprocess", "encode metadata", src.Label(), err)
	}
	path := MetadataPath(outputDir, src)
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return "", services.Wrap(services.ErrExport, "preprocess", "write metadata", path, err)
	}
	return path, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
