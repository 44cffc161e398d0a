package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"
)

const healthProbeTimeout = 2 * time.Second

// Stats counts items per status. Statuses with no items are absent.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	stats := make(map[Status]int)
	err := s.eachRow(ctx, func(rows *sql.Rows) error {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return err
		}
		stats[status] = count
		return nil
	}, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}

// CompletedMedia lists the distinct media identities of completed jobs in
// sorted order. It is the store-backed registry's source of truth.
func (s *Store) CompletedMedia(ctx context.Context) ([]string, error) {
	var media []string
	err := s.eachRow(ctx, func(rows *sql.Rows) error {
		var value string
		if err := rows.Scan(&value); err != nil {
			return err
		}
		media = append(media, value)
		return nil
	}, `SELECT DISTINCT media FROM queue_items WHERE status = ? ORDER BY media`, StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("completed media: %w", err)
	}
	return media, nil
}

func (s *Store) eachRow(ctx context.Context, scan func(*sql.Rows) error, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CheckHealth inspects the database file, schema version, table layout and
// SQLite integrity. A missing database file is reported, not treated as an
// error. The first failing probe stops the check and is recorded in Error.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return health, nil
	case err != nil:
		return health, fmt.Errorf("stat queue database: %w", err)
	case info.IsDir():
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	probes := []func(context.Context, *DatabaseHealth) error{
		s.probeReadable,
		s.probeSchema,
		s.probeTable,
		s.probeIntegrity,
	}
	for _, probe := range probes {
		if err := probe(probeCtx, &health); err != nil {
			health.Error = err.Error()
			return health, err
		}
	}
	return health, nil
}

func (s *Store) probeReadable(ctx context.Context, h *DatabaseHealth) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping queue database: %w", err)
	}
	h.DatabaseReadable = true
	return nil
}

func (s *Store) probeSchema(ctx context.Context, h *DatabaseHealth) error {
	version, err := s.userVersion(ctx)
	if err != nil {
		return err
	}
	h.SchemaVersion = version
	return nil
}

func (s *Store) probeTable(ctx context.Context, h *DatabaseHealth) error {
	var present []string
	err := s.eachRow(ctx, func(rows *sql.Rows) error {
		var (
			cid, notNull, pk int
			name, kind       string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &kind, &notNull, &dflt, &pk); err != nil {
			return err
		}
		present = append(present, name)
		return nil
	}, "PRAGMA table_info(queue_items)")
	if err != nil {
		return fmt.Errorf("table info: %w", err)
	}
	if len(present) == 0 {
		return nil
	}
	h.TableExists = true
	for _, col := range expectedColumns {
		if !slices.Contains(present, col) {
			h.MissingColumns = append(h.MissingColumns, col)
		}
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM queue_items").Scan(&h.TotalItems); err != nil {
		return fmt.Errorf("count queue items: %w", err)
	}
	return nil
}

func (s *Store) probeIntegrity(ctx context.Context, h *DatabaseHealth) error {
	var verdict string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&verdict); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	h.IntegrityCheck = strings.EqualFold(verdict, "ok")
	return nil
}
