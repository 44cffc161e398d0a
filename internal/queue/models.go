package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// NewItem describes a job about to be enqueued.
type NewItem struct {
	SourceKind     string
	SourceJSON     string
	CollectionPath string
	Title          string
	Media          string
	Diarize        bool
}

// Item represents a transcription job persisted in SQLite.
type Item struct {
	ID              int64
	Status          Status
	SourceKind      string
	SourceJSON      string
	CollectionPath  string
	Title           string
	Media           string
	Diarize         bool
	WorkDir         string
	AudioPath       string
	RawText         string
	CorrectedText   string
	Summary         string
	SummaryTags     []string
	MarkdownPath    string
	JSONPath        string
	TextPath        string
	Exports         map[string]string
	ErrorMessage    string
	ErrorKind       string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsActive reports whether the status still counts against the duplicate rule.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusInProgress
}

// IsTerminal reports whether the item reached completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Label returns the item's human-readable name.
func (i Item) Label() string {
	if title := strings.TrimSpace(i.Title); title != "" {
		return title
	}
	return i.Media
}

// Text returns the best available transcript: corrected when present,
// otherwise raw.
func (i Item) Text() string {
	if strings.TrimSpace(i.CorrectedText) != "" {
		return i.CorrectedText
	}
	return i.RawText
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetExport records the location an exporter wrote for this item.
func (i *Item) SetExport(name, location string) {
	if i.Exports == nil {
		i.Exports = make(map[string]string)
	}
	i.Exports[name] = location
}

// SetFailed marks the item as failed with the given message and error kind.
func (i *Item) SetFailed(message, kind string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ErrorKind = kind
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.ProgressStage = "Failed"
}

// SetCompleted marks the item as completed.
func (i *Item) SetCompleted(now time.Time) {
	i.Status = StatusCompleted
	i.ErrorMessage = ""
	i.ErrorKind = ""
	i.SetProgressComplete("Completed", "Transcript exported")
	completed := now.UTC()
	i.CompletedAt = &completed
}
