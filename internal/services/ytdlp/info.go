package ytdlp

import (
	"strings"

	"bobbin/internal/source"
)

// infoJSON is the subset of yt-dlp's -J output bobbin reads.
type infoJSON struct {
	Type        string        `json:"_type"`
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	URL         string        `json:"url"`
	WebpageURL  string        `json:"webpage_url"`
	Description string        `json:"description"`
	Uploader    string        `json:"uploader"`
	Channel     string        `json:"channel"`
	Tags        []string      `json:"tags"`
	Categories  []string      `json:"categories"`
	UploadDate  string        `json:"upload_date"`
	Duration    float64       `json:"duration"`
	Chapters    []chapterJSON `json:"chapters"`
	Entries     []infoJSON    `json:"entries"`
}

type chapterJSON struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Title     string  `json:"title"`
}

func (i infoJSON) metadata() source.Metadata {
	meta := source.Metadata{
		ID:          i.ID,
		Title:       strings.TrimSpace(i.Title),
		URL:         firstNonEmpty(i.WebpageURL, i.URL),
		Description: i.Description,
		Uploader:    firstNonEmpty(i.Uploader, i.Channel),
		Tags:        i.Tags,
		Categories:  i.Categories,
		Duration:    i.Duration,
	}
	if d, err := source.ParseDate(i.UploadDate); err == nil && !d.IsZero() {
		meta.UploadDate = &d
	}
	if len(i.Chapters) > 0 {
		chapters := make([]source.Chapter, 0, len(i.Chapters))
		for _, ch := range i.Chapters {
			chapters = append(chapters, source.Chapter{Start: ch.StartTime, Name: strings.TrimSpace(ch.Title)})
		}
		meta.Chapters = source.NormalizeChapters(chapters)
	}
	return meta
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
