package source

import (
	"path"
	"strings"

	"bobbin/internal/services"
	"bobbin/internal/textutil"
)

// Kind discriminates the Source variants.
type Kind string

const (
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindPlaylist Kind = "playlist"
	KindRSS      Kind = "rss"
)

// PrivateVideoTitle is the title platforms give playlist entries the caller
// cannot see.
const PrivateVideoTitle = "[Private video]"

// Chapter is a named offset into a recording.
type Chapter struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	Name  string  `json:"name"`
}

// Resource is a link pulled from show notes.
type Resource struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	URL   string `json:"url" yaml:"url"`
}

// PlatformMetadata is what a video platform reports about a video.
type PlatformMetadata struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	UploadDate  *Date     `json:"upload_date,omitempty"`
	Chapters    []Chapter `json:"chapters,omitempty"`
	Duration    float64   `json:"duration,omitempty"`
}

// Metadata is one entry returned by a Resolver. Flat playlist entries only
// carry ID, Title and URL; Complete marks full per-video metadata.
type Metadata struct {
	ID            string
	Title         string
	URL           string
	Description   string
	Uploader      string
	Tags          []string
	Categories    []string
	UploadDate    *Date
	Chapters      []Chapter
	Duration      float64
	PlaylistTitle string
	Complete      bool
}

// Platform converts resolved metadata into the form stored on a video.
func (m Metadata) Platform() *PlatformMetadata {
	return &PlatformMetadata{
		Title:       m.Title,
		Description: m.Description,
		Tags:        append([]string(nil), m.Tags...),
		Categories:  append([]string(nil), m.Categories...),
		UploadDate:  m.UploadDate,
		Chapters:    append([]Chapter(nil), m.Chapters...),
		Duration:    m.Duration,
	}
}

// Record holds the fields shared by every source kind.
type Record struct {
	Locator            string   `json:"locator"`
	CollectionPath     string   `json:"collection_path"`
	IsLocal            bool     `json:"is_local"`
	Title              string   `json:"title,omitempty"`
	EventDate          *Date    `json:"event_date,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	Categories         []string `json:"categories,omitempty"`
	Speakers           []string `json:"speakers,omitempty"`
	Summary            string   `json:"summary,omitempty"`
	EpisodeNumber      *int     `json:"episode_number,omitempty"`
	NeedsPreprocessing bool     `json:"needs_preprocessing,omitempty"`
	ExternalMediaLink  string   `json:"external_media_link,omitempty"`
}

// Media is the identity used for deduplication.
func (r Record) Media() string {
	if link := strings.TrimSpace(r.ExternalMediaLink); link != "" {
		return link
	}
	return r.Locator
}

// Source is the tagged union of audio, video, playlist and rss sources.
type Source struct {
	Kind Kind `json:"kind"`
	Record

	Description         string            `json:"description,omitempty"`
	Chapters            []Chapter         `json:"chapters,omitempty"`
	Platform            *PlatformMetadata `json:"platform_metadata,omitempty"`
	AdditionalResources []Resource        `json:"additional_resources,omitempty"`

	// Items holds playlist children (videos); Entries holds feed children (audio).
	Items   []Source `json:"items,omitempty"`
	Entries []Source `json:"entries,omitempty"`

	Outcomes []services.Outcome `json:"-"`
}

// IsContainer reports whether the source expands into children.
func (s Source) IsContainer() bool {
	return s.Kind == KindPlaylist || s.Kind == KindRSS
}

// Candidates flattens the source into the concrete units that can be queued.
func (s Source) Candidates() []Source {
	switch s.Kind {
	case KindPlaylist:
		return append([]Source(nil), s.Items...)
	case KindRSS:
		return append([]Source(nil), s.Entries...)
	default:
		return []Source{s}
	}
}

// Slug returns a filesystem-safe name derived from the title.
func (s Source) Slug() string {
	if title := strings.TrimSpace(s.Title); title != "" {
		return textutil.Slugify(title)
	}
	return textutil.Slugify(path.Base(s.Locator))
}

// Label returns the most descriptive identifier for messages.
func (s Source) Label() string {
	if title := strings.TrimSpace(s.Title); title != "" {
		return title
	}
	return s.Locator
}

// NormalizeCollectionPath trims separators and collapses empty or dot
// segments so the result never starts or ends with "/".
func NormalizeCollectionPath(value string) string {
	value = strings.ReplaceAll(strings.TrimSpace(value), "\\", "/")
	parts := strings.Split(value, "/")
	kept := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "." {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}

func mergeLists(base []string, extra ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(values []string) {
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			key := strings.ToLower(v)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	add(base)
	for _, e := range extra {
		add(e)
	}
	return out
}
