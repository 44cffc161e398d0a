package queue

import (
	"context"
	"fmt"
)

// ResetStuckProcessing returns in-progress items to queued. A crashed run
// leaves its current job in_progress; the next run picks it up again.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	return s.requeue(ctx, "reset stuck items", "Reset from stuck processing", false, StatusInProgress, nil)
}

// RetryFailed requeues failed items and clears their error. With no ids every
// failed item is retried; ids that are not failed are left alone.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	return s.requeue(ctx, "retry failed items", "Retry requested", true, StatusFailed, ids)
}

func (s *Store) requeue(ctx context.Context, op, stage string, clearError bool, from Status, ids []int64) (int64, error) {
	set := `status = ?, progress_stage = ?, progress_percent = 0, progress_message = NULL, updated_at = ?`
	if clearError {
		set += `, error_message = NULL, error_kind = NULL`
	}
	args := []any{StatusQueued, stage, nowStamp(), from}
	where := `status = ?`
	if len(ids) > 0 {
		where += ` AND id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, `UPDATE queue_items SET `+set+` WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}
