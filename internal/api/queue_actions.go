package api

import (
	"context"

	"bobbin/internal/queue"
)

// QueueActionService captures the queue operations per-item actions need.
type QueueActionService interface {
	Describe(ctx context.Context, id int64) (*QueueItem, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	Remove(ctx context.Context, ids []int64) (int64, error)
}

// ItemOutcome is what a per-id action did to one job.
type ItemOutcome string

const (
	OutcomeRetried   ItemOutcome = "retried"
	OutcomeRemoved   ItemOutcome = "removed"
	OutcomeNotFound  ItemOutcome = "not_found"
	OutcomeNotFailed ItemOutcome = "not_failed"
	OutcomeActive    ItemOutcome = "in_progress"
)

type ItemResult struct {
	ID      int64       `json:"id"`
	Outcome ItemOutcome `json:"outcome"`
}

// BatchResult reports a per-id action in request order. Changed counts the
// jobs the action actually touched.
type BatchResult struct {
	Changed int64        `json:"changed"`
	Items   []ItemResult `json:"items"`
}

// RetryFailedItemsByID requeues the listed jobs that have failed.
func RetryFailedItemsByID(ctx context.Context, svc QueueActionService, ids []int64) (BatchResult, error) {
	return applyByID(ctx, svc, ids, perItemAction{
		check: func(item QueueItem) ItemOutcome {
			if status, ok := queue.ParseStatus(item.Status); !ok || status != queue.StatusFailed {
				return OutcomeNotFailed
			}
			return ""
		},
		apply:  svc.Retry,
		done:   OutcomeRetried,
		missed: OutcomeNotFailed,
	})
}

// RemoveItemsByID deletes the listed jobs, leaving any a run is working on.
func RemoveItemsByID(ctx context.Context, svc QueueActionService, ids []int64) (BatchResult, error) {
	return applyByID(ctx, svc, ids, perItemAction{
		check: func(item QueueItem) ItemOutcome {
			if item.Status == string(queue.StatusInProgress) {
				return OutcomeActive
			}
			return ""
		},
		apply:  svc.Remove,
		done:   OutcomeRemoved,
		missed: OutcomeNotFound,
	})
}

type perItemAction struct {
	// check returns a non-empty outcome when the job must be left alone.
	check  func(QueueItem) ItemOutcome
	apply  func(context.Context, []int64) (int64, error)
	done   ItemOutcome
	missed ItemOutcome
}

// applyByID runs the action one id at a time so every id gets its own
// outcome; a store error aborts the batch.
func applyByID(ctx context.Context, svc QueueActionService, ids []int64, action perItemAction) (BatchResult, error) {
	result := BatchResult{Items: make([]ItemResult, 0, len(ids))}
	for _, id := range ids {
		outcome, changed, err := applyOne(ctx, svc, id, action)
		if err != nil {
			return BatchResult{}, err
		}
		result.Changed += changed
		result.Items = append(result.Items, ItemResult{ID: id, Outcome: outcome})
	}
	return result, nil
}

func applyOne(ctx context.Context, svc QueueActionService, id int64, action perItemAction) (ItemOutcome, int64, error) {
	item, err := svc.Describe(ctx, id)
	if err != nil {
		return "", 0, err
	}
	if item == nil {
		return OutcomeNotFound, 0, nil
	}
	if skip := action.check(*item); skip != "" {
		return skip, 0, nil
	}
	changed, err := action.apply(ctx, []int64{id})
	if err != nil {
		return "", 0, err
	}
	if changed == 0 {
		return action.missed, 0, nil
	}
	return action.done, changed, nil
}
