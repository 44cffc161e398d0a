package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

func selectFrom(where string) string {
	return "SELECT " + itemColumns + " FROM queue_items " + where
}

// Enqueue inserts a queued job. A second active job for the same
// (collection path, title) is rejected with *DuplicateSourceError.
func (s *Store) Enqueue(ctx context.Context, in NewItem) (*Item, error) {
	in.CollectionPath = strings.TrimSpace(in.CollectionPath)
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return nil, fmt.Errorf("enqueue %s: title is required", in.Media)
	case strings.TrimSpace(in.SourceJSON) == "":
		return nil, fmt.Errorf("enqueue %q: source payload is required", in.Title)
	}

	active, err := s.FindActive(ctx, in.CollectionPath, in.Title)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, &DuplicateSourceError{CollectionPath: in.CollectionPath, Title: in.Title, ExistingID: active.ID}
	}

	stamp := nowStamp()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO queue_items (status, source_kind, source_json, collection_path, title, media, diarize,
            created_at, updated_at, progress_stage, progress_percent)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'Queued', 0)`,
		StatusQueued, in.SourceKind, in.SourceJSON, in.CollectionPath, in.Title, in.Media, boolToInt(in.Diarize),
		stamp, stamp,
	)
	if isUniqueViolation(err) {
		return nil, &DuplicateSourceError{CollectionPath: in.CollectionPath, Title: in.Title}
	}
	if err != nil {
		return nil, fmt.Errorf("insert job %q: %w", in.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// queryOne returns nil without error when no row matches.
func (s *Store) queryOne(ctx context.Context, op, where string, args ...any) (*Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, selectFrom(where), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return item, nil
}

// GetByID returns the item, or nil when no such id exists.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	return s.queryOne(ctx, "get item", `WHERE id = ?`, id)
}

// FindActive returns the queued or in-progress job owning the pair, if any.
func (s *Store) FindActive(ctx context.Context, collectionPath, title string) (*Item, error) {
	return s.queryOne(ctx, "find active item",
		`WHERE collection_path = ? AND title = ? AND status IN (?, ?) ORDER BY id LIMIT 1`,
		collectionPath, title, StatusQueued, StatusInProgress)
}

// NextQueued returns the oldest queued item, or nil when the queue is drained.
func (s *Store) NextQueued(ctx context.Context) (*Item, error) {
	return s.queryOne(ctx, "next queued item", `WHERE status = ? ORDER BY created_at, id LIMIT 1`, StatusQueued)
}

// Update writes every mutable field of item and bumps its UpdatedAt.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	values, err := itemValues(item)
	if err != nil {
		return err
	}
	query := `UPDATE queue_items SET ` + strings.Join(mutableColumns, " = ?, ") + ` = ? WHERE id = ?`
	_, err = s.execWithRetry(ctx, query, append(values, item.ID)...)
	if isUniqueViolation(err) {
		return &DuplicateSourceError{CollectionPath: item.CollectionPath, Title: item.Title}
	}
	if err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	return nil
}

// List returns items oldest first, limited to statuses when any are given.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	where := ""
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		where = `WHERE status IN (` + placeholders(len(statuses)) + `) `
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	rows, err := s.db.QueryContext(ctx, selectFrom(where+`ORDER BY created_at, id`), args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return collectItems(rows)
}

func (s *Store) deleteWhere(ctx context.Context, op, where string, args ...any) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}

// Remove deletes one item and reports whether it existed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	n, err := s.deleteWhere(ctx, "delete item", `WHERE id = ?`, id)
	return n > 0, err
}

// Clear deletes every item.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, "clear queue", "")
}

// ClearCompleted deletes completed items only.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, "clear completed", `WHERE status = ?`, StatusCompleted)
}

// ClearFailed deletes failed items only.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, "clear failed", `WHERE status = ?`, StatusFailed)
}
