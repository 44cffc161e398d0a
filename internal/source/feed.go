package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"bobbin/internal/logging"
	"bobbin/internal/services"
)

// FeedFetcher loads feeds over HTTP or from disk with gofeed.
type FeedFetcher struct {
	client    *http.Client
	userAgent string
}

// NewFeedFetcher builds a FeedFetcher. A nil client gets a 60 second timeout.
func NewFeedFetcher(client *http.Client, userAgent string) *FeedFetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &FeedFetcher{client: client, userAgent: userAgent}
}

// Load implements FeedLoader.
func (f *FeedFetcher) Load(ctx context.Context, locator string) (*gofeed.Feed, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client
	if f.userAgent != "" {
		parser.UserAgent = f.userAgent
	}
	if isLocalLocator(locator) {
		file, err := os.Open(strings.TrimPrefix(locator, "file://"))
		if err != nil {
			return nil, fmt.Errorf("open feed: %w", err)
		}
		defer file.Close()
		feed, err := parser.Parse(file)
		if err != nil {
			return nil, fmt.Errorf("parse feed: %w", err)
		}
		return feed, nil
	}
	feed, err := parser.ParseURLWithContext(locator, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	return feed, nil
}

func (c *Classifier) classifyFeed(ctx context.Context, rec Record, hints Hints) (Source, error) {
	if c.feeds == nil {
		return Source{}, invalid(rec.Locator, "no feed loader configured", nil)
	}
	if err := requireLocalFile(rec); err != nil {
		return Source{}, err
	}
	feed, err := c.feeds.Load(ctx, rec.Locator)
	if err != nil {
		return Source{}, invalid(rec.Locator, "load feed", err)
	}
	if feed == nil {
		return Source{}, invalid(rec.Locator, "feed is empty", nil)
	}

	rss := Source{Kind: KindRSS, Record: rec}
	if rss.Title == "" {
		rss.Title = strings.TrimSpace(feed.Title)
	}
	rss.Description = htmlText(feed.Description)

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entry, outcome, ok := c.feedEntry(rec, item)
		if !ok {
			logging.WarnWithContext(c.logger, "feed entry skipped", "feed_entry_skipped",
				logging.String(logging.FieldLocator, rec.Locator),
				logging.String("title", outcome.Title),
				logging.String("reason", outcome.Reason),
				logging.String(logging.FieldImpact, "entry will not be queued"),
				logging.String(logging.FieldErrorHint, "only audio enclosures can be transcribed"),
			)
			rss.Outcomes = append(rss.Outcomes, outcome)
			continue
		}
		rss.Entries = append(rss.Entries, entry)
	}
	return rss, nil
}

// feedEntry converts one feed item. It returns ok=false with a skip outcome
// when the item has no audio enclosure.
func (c *Classifier) feedEntry(rec Record, item *gofeed.Item) (Source, services.Outcome, bool) {
	title := strings.TrimSpace(item.Title)
	enclosure, skipReason := audioEnclosure(item)
	if enclosure == nil {
		return Source{}, services.Skip(rec.Locator, title, skipReason), false
	}

	child := Record{
		Locator:            strings.TrimSpace(enclosure.URL),
		CollectionPath:     rec.CollectionPath,
		Title:              title,
		Tags:               mergeLists(rec.Tags),
		Categories:         mergeLists(rec.Categories, item.Categories),
		Speakers:           mergeLists(rec.Speakers, authorNames(item)),
		NeedsPreprocessing: rec.NeedsPreprocessing,
		EpisodeNumber:      episodeNumber(item),
	}
	switch {
	case item.PublishedParsed != nil:
		d := NewDate(*item.PublishedParsed)
		child.EventDate = &d
	case item.UpdatedParsed != nil:
		d := NewDate(*item.UpdatedParsed)
		child.EventDate = &d
	}
	if child.Title == "" {
		child.Title = titleFromLocator(child.Locator)
	}

	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}
	entry := Source{
		Kind:                KindAudio,
		Record:              child,
		Description:         htmlText(body),
		AdditionalResources: htmlLinks(body),
	}
	if item.ITunesExt != nil && entry.Summary == "" {
		entry.Summary = strings.TrimSpace(item.ITunesExt.Summary)
	}
	return entry, services.Outcome{}, true
}

func audioEnclosure(item *gofeed.Item) (*gofeed.Enclosure, string) {
	if len(item.Enclosures) == 0 {
		return nil, "no enclosure"
	}
	var types []string
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		mediaType := strings.ToLower(strings.TrimSpace(enc.Type))
		if strings.HasPrefix(mediaType, "audio/") && strings.TrimSpace(enc.URL) != "" {
			return enc, ""
		}
		types = append(types, mediaType)
	}
	return nil, "unsupported enclosure type " + strings.Join(types, ", ")
}

func episodeNumber(item *gofeed.Item) *int {
	if item.ITunesExt == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(item.ITunesExt.Episode))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func authorNames(item *gofeed.Item) []string {
	var names []string
	for _, author := range item.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			names = append(names, author.Name)
		}
	}
	return names
}

// htmlText flattens show-note HTML to plain text, one block per line.
func htmlText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, h1, h2, h3, h4, div").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// htmlLinks collects absolute links from show notes, first occurrence wins.
func htmlLinks(raw string) []Resource {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []Resource
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		out = append(out, Resource{Title: strings.Join(strings.Fields(sel.Text()), " "), URL: href})
	})
	return out
}
