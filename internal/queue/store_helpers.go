package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// expectedColumns is the queue_items layout in scan order.
var expectedColumns = []string{
	"id", "status", "source_kind", "source_json", "collection_path", "title", "media", "diarize",
	"work_dir", "audio_path", "raw_text", "corrected_text", "summary", "summary_tags_json",
	"markdown_path", "json_path", "text_path", "exports_json", "error_message", "error_kind",
	"progress_stage", "progress_percent", "progress_message", "created_at", "updated_at", "completed_at",
}

var itemColumns = strings.Join(expectedColumns, ", ")

// mutableColumns are written by Update, in the order itemValues returns them.
var mutableColumns = []string{
	"status", "source_kind", "source_json", "collection_path", "title", "media", "diarize",
	"work_dir", "audio_path", "raw_text", "corrected_text", "summary", "summary_tags_json",
	"markdown_path", "json_path", "text_path", "exports_json", "error_message", "error_kind",
	"progress_stage", "progress_percent", "progress_message", "updated_at", "completed_at",
}

type rowScanner interface{ Scan(dest ...any) error }

func scanItem(row rowScanner) (*Item, error) {
	var (
		item                                         Item
		status                                       string
		diarize                                      int64
		workDir, audioPath, rawText, corrected       sql.NullString
		summary, tags, markdown, jsonPath, textPath  sql.NullString
		exports, errMessage, errKind, stage, message sql.NullString
		percent                                      sql.NullFloat64
		created, updated, completed                  sql.NullString
	)
	err := row.Scan(
		&item.ID, &status, &item.SourceKind, &item.SourceJSON, &item.CollectionPath, &item.Title, &item.Media, &diarize,
		&workDir, &audioPath, &rawText, &corrected, &summary, &tags,
		&markdown, &jsonPath, &textPath, &exports, &errMessage, &errKind,
		&stage, &percent, &message, &created, &updated, &completed,
	)
	if err != nil {
		return nil, err
	}
	item.Status = Status(status)
	item.Diarize = diarize != 0
	item.WorkDir, item.AudioPath = workDir.String, audioPath.String
	item.RawText, item.CorrectedText, item.Summary = rawText.String, corrected.String, summary.String
	item.MarkdownPath, item.JSONPath, item.TextPath = markdown.String, jsonPath.String, textPath.String
	item.ErrorMessage, item.ErrorKind = errMessage.String, errKind.String
	item.ProgressStage, item.ProgressPercent, item.ProgressMessage = stage.String, percent.Float64, message.String

	if err := decodeJSONColumn(tags, &item.SummaryTags); err != nil {
		return nil, fmt.Errorf("decode summary tags: %w", err)
	}
	if err := decodeJSONColumn(exports, &item.Exports); err != nil {
		return nil, fmt.Errorf("decode exports: %w", err)
	}
	item.CreatedAt, _ = parseTimestamp(created.String)
	item.UpdatedAt, _ = parseTimestamp(updated.String)
	if t, ok := parseTimestamp(completed.String); ok {
		item.CompletedAt = &t
	}
	return &item, nil
}

// itemValues lines up with mutableColumns.
func itemValues(item *Item) ([]any, error) {
	tags, err := encodeJSONColumn(item.SummaryTags, len(item.SummaryTags) == 0)
	if err != nil {
		return nil, fmt.Errorf("encode summary tags: %w", err)
	}
	exports, err := encodeJSONColumn(item.Exports, len(item.Exports) == 0)
	if err != nil {
		return nil, fmt.Errorf("encode exports: %w", err)
	}
	return []any{
		item.Status, item.SourceKind, item.SourceJSON, item.CollectionPath, item.Title, item.Media, boolToInt(item.Diarize),
		nullable(item.WorkDir), nullable(item.AudioPath), nullable(item.RawText), nullable(item.CorrectedText),
		nullable(item.Summary), tags,
		nullable(item.MarkdownPath), nullable(item.JSONPath), nullable(item.TextPath), exports,
		nullable(item.ErrorMessage), nullable(item.ErrorKind),
		nullable(item.ProgressStage), item.ProgressPercent, nullable(item.ProgressMessage),
		formatTimestamp(item.UpdatedAt), nullableTime(item.CompletedAt),
	}, nil
}

func decodeJSONColumn(value sql.NullString, target any) error {
	if !value.Valid || value.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(value.String), target)
}

func encodeJSONColumn(value any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTimestamp(*value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTimestamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func nowStamp() string { return formatTimestamp(time.Now()) }

// parseTimestamp accepts RFC 3339 and SQLite's CURRENT_TIMESTAMP layout.
func parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateTime} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
