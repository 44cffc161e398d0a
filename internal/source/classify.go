package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mmcdole/gofeed"

	"bobbin/internal/logging"
	"bobbin/internal/services"
	"bobbin/internal/textutil"
)

// Resolver looks up platform metadata for a locator. A playlist yields one
// entry per video; a single video yields one entry.
type Resolver interface {
	Resolve(ctx context.Context, locator string) ([]Metadata, error)
}

// FeedLoader fetches and parses a podcast feed from a URL or local file.
type FeedLoader interface {
	Load(ctx context.Context, locator string) (*gofeed.Feed, error)
}

// Hints carries caller-supplied fields applied to the classified source.
type Hints struct {
	CollectionPath    string
	Title             string
	EventDate         *Date
	Tags              []string
	Categories        []string
	Speakers          []string
	Summary           string
	EpisodeNumber     *int
	ExternalMediaLink string
	Chapters          []Chapter
	Preprocess        bool
	Platform          *PlatformMetadata
}

var (
	audioExtensions = map[string]struct{}{".mp3": {}, ".wav": {}, ".m4a": {}, ".aac": {}}
	feedExtensions  = map[string]struct{}{".rss": {}, ".xml": {}}
	videoExtensions = map[string]struct{}{".mp4": {}, ".webm": {}, ".mov": {}}
)

// Classifier turns raw locators into Sources.
type Classifier struct {
	resolver Resolver
	feeds    FeedLoader
	logger   *slog.Logger
}

// NewClassifier constructs a Classifier. Either collaborator may be nil; the
// matching decision steps then report InvalidSource.
func NewClassifier(resolver Resolver, feeds FeedLoader, logger *slog.Logger) *Classifier {
	return &Classifier{
		resolver: resolver,
		feeds:    feeds,
		logger:   logging.NewComponentLogger(logger, "source"),
	}
}

// Classify applies the decision order and returns the classified source.
// Failures are wrapped with services.ErrInvalidSource and name the locator.
func (c *Classifier) Classify(ctx context.Context, raw string, hints Hints) (Source, error) {
	locator := strings.TrimSpace(raw)
	if locator == "" {
		return Source{}, invalid(raw, "locator is empty", nil)
	}
	local := isLocalLocator(locator)
	if local {
		locator = strings.TrimPrefix(locator, "file://")
		abs, err := filepath.Abs(locator)
		if err == nil {
			locator = abs
		}
	}
	rec := c.baseRecord(locator, local, hints)
	ext := locatorExtension(locator)

	if _, ok := audioExtensions[ext]; ok {
		if err := requireLocalFile(rec); err != nil {
			return Source{}, err
		}
		return newAudio(rec, hints), nil
	}
	if _, ok := feedExtensions[ext]; ok {
		return c.classifyFeed(ctx, rec, hints)
	}
	if hints.Platform != nil {
		rec.NeedsPreprocessing = false
		return newVideo(rec, hints.Platform), nil
	}
	if _, ok := videoExtensions[ext]; ok {
		if err := requireLocalFile(rec); err != nil {
			return Source{}, err
		}
		video := newVideo(rec, nil)
		video.Chapters = NormalizeChapters(hints.Chapters)
		return video, nil
	}
	if local {
		return Source{}, invalid(locator, "unsupported local file type "+ext, nil)
	}
	return c.classifyResolved(ctx, rec, hints)
}

func (c *Classifier) baseRecord(locator string, local bool, hints Hints) Record {
	return Record{
		Locator:            locator,
		CollectionPath:     NormalizeCollectionPath(hints.CollectionPath),
		IsLocal:            local,
		Title:              strings.TrimSpace(hints.Title),
		EventDate:          hints.EventDate,
		Tags:               mergeLists(hints.Tags),
		Categories:         mergeLists(hints.Categories),
		Speakers:           mergeLists(hints.Speakers),
		Summary:            strings.TrimSpace(hints.Summary),
		EpisodeNumber:      hints.EpisodeNumber,
		NeedsPreprocessing: hints.Preprocess,
		ExternalMediaLink:  strings.TrimSpace(hints.ExternalMediaLink),
	}
}

func (c *Classifier) classifyResolved(ctx context.Context, rec Record, hints Hints) (Source, error) {
	if c.resolver == nil {
		return Source{}, invalid(rec.Locator, "no metadata resolver configured", nil)
	}
	entries, err := c.resolver.Resolve(ctx, rec.Locator)
	if err != nil {
		return Source{}, invalid(rec.Locator, "resolve metadata", err)
	}
	switch len(entries) {
	case 0:
		return Source{}, invalid(rec.Locator, "no media found", nil)
	case 1:
		if entries[0].PlaylistTitle == "" {
			meta := entries[0]
			return newVideo(rec, meta.Platform()), nil
		}
	}
	return c.expandPlaylist(ctx, rec, entries), nil
}

// expandPlaylist builds one child video per visible entry. Private entries
// are dropped without an outcome; other per-entry failures become skips.
func (c *Classifier) expandPlaylist(ctx context.Context, rec Record, entries []Metadata) Source {
	playlist := Source{Kind: KindPlaylist, Record: rec}
	if playlist.Title == "" {
		playlist.Title = entries[0].PlaylistTitle
	}
	for _, entry := range entries {
		if strings.TrimSpace(entry.Title) == PrivateVideoTitle {
			continue
		}
		childLocator := entryLocator(entry)
		if childLocator == "" {
			playlist.Outcomes = append(playlist.Outcomes,
				services.Skip(rec.Locator, entry.Title, "playlist entry has no url"))
			continue
		}
		child := Record{
			Locator:            childLocator,
			CollectionPath:     rec.CollectionPath,
			Title:              strings.TrimSpace(entry.Title),
			EventDate:          entry.UploadDate,
			Tags:               append([]string(nil), rec.Tags...),
			Categories:         append([]string(nil), rec.Categories...),
			Speakers:           append([]string(nil), rec.Speakers...),
			NeedsPreprocessing: rec.NeedsPreprocessing,
		}
		meta := entry
		if child.NeedsPreprocessing && !entry.Complete {
			fetched, err := c.fetchMetadata(ctx, childLocator)
			if err != nil {
				reason := fmt.Sprintf("metadata fetch failed: %v", err)
				logging.WarnWithContext(c.logger, "playlist entry skipped", "playlist_entry_skipped",
					logging.String(logging.FieldLocator, childLocator),
					logging.String("title", child.Title),
					logging.Error(err),
					logging.String(logging.FieldImpact, "entry will not be queued"),
					logging.String(logging.FieldErrorHint, "check the video is public and yt-dlp is current"),
				)
				playlist.Outcomes = append(playlist.Outcomes, services.Skip(childLocator, child.Title, reason))
				continue
			}
			meta = fetched
		}
		var platform *PlatformMetadata
		if meta.Complete {
			platform = meta.Platform()
		}
		playlist.Items = append(playlist.Items, newVideo(child, platform))
	}
	return playlist
}

func (c *Classifier) fetchMetadata(ctx context.Context, locator string) (Metadata, error) {
	entries, err := c.resolver.Resolve(ctx, locator)
	if err != nil {
		return Metadata{}, err
	}
	if len(entries) == 0 {
		return Metadata{}, fmt.Errorf("no metadata for %s", locator)
	}
	meta := entries[0]
	meta.Complete = true
	return meta, nil
}

func newAudio(rec Record, hints Hints) Source {
	if rec.Title == "" {
		rec.Title = titleFromLocator(rec.Locator)
	}
	return Source{
		Kind:     KindAudio,
		Record:   rec,
		Chapters: NormalizeChapters(hints.Chapters),
	}
}

func newVideo(rec Record, meta *PlatformMetadata) Source {
	video := Source{Kind: KindVideo, Record: rec}
	if meta != nil {
		video.Platform = meta
		video.Description = strings.TrimSpace(meta.Description)
		video.Chapters = NormalizeChapters(meta.Chapters)
		video.Tags = mergeLists(rec.Tags, meta.Tags)
		video.Categories = mergeLists(rec.Categories, meta.Categories)
		if video.EventDate == nil {
			video.EventDate = meta.UploadDate
		}
		if video.Title == "" {
			video.Title = strings.TrimSpace(meta.Title)
		}
	}
	if video.Title == "" {
		video.Title = titleFromLocator(rec.Locator)
	}
	return video
}

func entryLocator(entry Metadata) string {
	if u := strings.TrimSpace(entry.URL); strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if id := strings.TrimSpace(entry.ID); id != "" {
		return "https://www.youtube.com/watch?v=" + id
	}
	return ""
}

func invalid(locator, message string, err error) error {
	return services.Wrap(services.ErrInvalidSource, "source", "classify", fmt.Sprintf("%s: %s", locator, message), err)
}

func requireLocalFile(rec Record) error {
	if !rec.IsLocal {
		return nil
	}
	info, err := os.Stat(rec.Locator)
	if err != nil {
		return invalid(rec.Locator, "local file not readable", err)
	}
	if info.IsDir() {
		return invalid(rec.Locator, "path is a directory", nil)
	}
	return nil
}

func isLocalLocator(locator string) bool {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" {
		return true
	}
	// Windows drive letters parse as a one-letter scheme.
	if len(u.Scheme) == 1 {
		return true
	}
	return u.Scheme == "file"
}

// locatorExtension returns the lowercased extension, ignoring query strings
// and fragments on URLs.
func locatorExtension(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

func titleFromLocator(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = u.Path
	}
	if title := textutil.TitleFromPath(p); title != "" {
		return title
	}
	return locator
}
