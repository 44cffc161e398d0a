package api

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"bobbin/internal/deps"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/source"
	"bobbin/internal/stage"
	"bobbin/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}

	dto := QueueItem{
		ID:             item.ID,
		Title:          item.Title,
		CollectionPath: item.CollectionPath,
		SourceKind:     item.SourceKind,
		Media:          item.Media,
		Status:         string(item.Status),
		Diarize:        item.Diarize,
		Progress: QueueProgress{
			Stage:   item.ProgressStage,
			Percent: item.ProgressPercent,
			Message: item.ProgressMessage,
		},
		ErrorMessage: item.ErrorMessage,
		ErrorKind:    item.ErrorKind,
		Summary:      item.Summary,
		SummaryTags:  slices.Clone(item.SummaryTags),
		MarkdownPath: item.MarkdownPath,
		JSONPath:     item.JSONPath,
		TextPath:     item.TextPath,
		CreatedAt:    FormatTime(item.CreatedAt),
		UpdatedAt:    FormatTime(item.UpdatedAt),
	}
	if len(item.Exports) > 0 {
		dto.Exports = maps.Clone(item.Exports)
	}
	if item.CompletedAt != nil {
		dto.CompletedAt = FormatTime(*item.CompletedAt)
	}
	if raw := strings.TrimSpace(item.SourceJSON); raw != "" && json.Valid([]byte(raw)) {
		dto.Source = json.RawMessage(raw)
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	health := StageHealthSlice(summary.StageHealth)
	if health == nil {
		health = []StageHealth{}
	}
	wf := WorkflowStatus{
		Running:     summary.Running,
		State:       string(summary.State),
		QueueStats:  MergeQueueStats(summary.QueueStats),
		StageHealth: health,
		ScratchPath: summary.ScratchPath,
		LastError:   summary.LastError,
	}
	if summary.LastItem != nil {
		last := FromQueueItem(summary.LastItem)
		wf.LastItem = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats with
// every known status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := slices.Sorted(maps.Keys(health))
	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromSubmitReport converts a workflow submission report.
func FromSubmitReport(report workflow.SubmitReport) SubmitResponse {
	resp := SubmitResponse{
		Added:    report.Added,
		Metadata: report.Metadata,
		Excluded: report.Excluded,
	}
	if resp.Added == nil {
		resp.Added = []int64{}
	}
	for _, outcome := range report.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedCandidate{
			Locator: outcome.Locator,
			Title:   outcome.Title,
			Reason:  outcome.Reason,
		})
	}
	return resp
}

// Options validates the request and converts it into workflow options.
func (r SubmitRequest) Options() (string, workflow.SubmitOptions, error) {
	locator := strings.TrimSpace(r.Source)
	if locator == "" {
		return "", workflow.SubmitOptions{}, services.Wrap(services.ErrValidation, "submit", "parse request", "source is required", nil)
	}
	opts := workflow.SubmitOptions{
		Hints: source.Hints{
			CollectionPath:    strings.TrimSpace(r.CollectionPath),
			Title:             strings.TrimSpace(r.Title),
			Tags:              r.Tags,
			Categories:        r.Categories,
			Speakers:          r.Speakers,
			Summary:           r.Summary,
			EpisodeNumber:     r.Episode,
			ExternalMediaLink: strings.TrimSpace(r.ExternalMediaLink),
			Preprocess:        r.Preprocess,
		},
		Exclusions: r.Exclude,
		Diarize:    r.Diarize,
	}
	if value := strings.TrimSpace(r.Date); value != "" {
		date, err := source.ParseDate(value)
		if err != nil {
			return "", workflow.SubmitOptions{}, services.Wrap(services.ErrValidation, "submit", "parse request",
				fmt.Sprintf("date for %s", locator), err)
		}
		opts.Hints.EventDate = &date
	}
	if value := strings.TrimSpace(r.Cutoff); value != "" {
		cutoff, err := source.ParseDate(value)
		if err != nil {
			return "", workflow.SubmitOptions{}, services.Wrap(services.ErrValidation, "submit", "parse request",
				fmt.Sprintf("cutoff for %s", locator), err)
		}
		opts.Cutoff = &cutoff
	}
	return locator, opts, nil
}

// FromDependencies converts binary check results. The result is never nil.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}
