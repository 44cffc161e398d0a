package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bobbin/internal/queue"
	"bobbin/internal/services"
)

// QueueStore abstracts the queue persistence operations the API exposes.
type QueueStore interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Item, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Clear(ctx context.Context) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
	ClearFailed(ctx context.Context) (int64, error)
	RetryFailed(ctx context.Context, ids ...int64) (int64, error)
}

// Clear scopes accepted by QueueService.Clear.
const (
	ClearAll       = "all"
	ClearCompleted = "completed"
	ClearFailed    = "failed"
)

var errQueueUnavailable = errors.New("queue store unavailable")

// QueueService exposes queue operations returning API DTOs.
type QueueService struct {
	store QueueStore
}

// NewQueueService constructs a QueueService around the provided store.
func NewQueueService(store QueueStore) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns queue items filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single queue item. It returns nil when the id is unknown.
func (s *QueueService) Describe(ctx context.Context, id int64) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromQueueItem(item)
	return &dto, nil
}

// Retry moves failed items back to queued. No ids retries every failed item.
func (s *QueueService) Retry(ctx context.Context, ids []int64) (int64, error) {
	if s == nil || s.store == nil {
		return 0, errQueueUnavailable
	}
	return s.store.RetryFailed(ctx, ids...)
}

// Remove deletes the given items and returns how many existed.
func (s *QueueService) Remove(ctx context.Context, ids []int64) (int64, error) {
	if s == nil || s.store == nil {
		return 0, errQueueUnavailable
	}
	var removed int64
	for _, id := range ids {
		ok, err := s.store.Remove(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Clear removes items in the given scope: all, completed or failed.
func (s *QueueService) Clear(ctx context.Context, scope string) (int64, error) {
	if s == nil || s.store == nil {
		return 0, errQueueUnavailable
	}
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case "", ClearAll:
		return s.store.Clear(ctx)
	case ClearCompleted:
		return s.store.ClearCompleted(ctx)
	case ClearFailed:
		return s.store.ClearFailed(ctx)
	default:
		return 0, services.Wrap(services.ErrValidation, "queue", "clear",
			fmt.Sprintf("unknown scope %q (use all, completed or failed)", scope), nil)
	}
}
