package main

import (
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"bobbin/internal/api"
)

func buildQueueStatusRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, key := range slices.Sorted(maps.Keys(stats)) {
		if stats[key] == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(stats[key])})
	}
	return rows
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			if media := strings.TrimSpace(item.Media); media != "" {
				title = filepath.Base(media)
			} else {
				title = "Unknown"
			}
		}
		status := formatStatusLabel(item.Status)
		if item.Status == "in_progress" && item.Progress.Stage != "" {
			status += " (" + item.Progress.Stage + ")"
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			title,
			item.CollectionPath,
			status,
			formatDisplayTime(item.CreatedAt),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	t := api.ParseQueueTime(strings.TrimSpace(value))
	if t.IsZero() {
		return value
	}
	return t.UTC().Format("2006-01-02 15:04")
}
