package api

import (
	"cmp"
	"slices"
	"time"
)

// SortQueueItemsNewestFirst returns a copy of items ordered by creation time,
// newest first. Items created in the same instant fall back to descending ID,
// and unparseable timestamps sort last.
func SortQueueItemsNewestFirst(items []QueueItem) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	created := make(map[int64]time.Time, len(items))
	for _, item := range items {
		created[item.ID] = ParseQueueTime(item.CreatedAt)
	}
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b QueueItem) int {
		return cmp.Or(created[b.ID].Compare(created[a.ID]), cmp.Compare(b.ID, a.ID))
	})
	return out
}

// ParseQueueTime reads an RFC 3339 API timestamp. Blank or malformed values
// yield the zero time.
func ParseQueueTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
