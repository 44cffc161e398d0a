package registry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bobbin/internal/services"
)

// PostgresConfig selects the table and column holding media locators.
type PostgresConfig struct {
	DSN     string
	Table   string
	Column  string
	Timeout time.Duration
}

// PostgresRegistry reads media from a Postgres table through the pgx driver.
type PostgresRegistry struct {
	cfg PostgresConfig

	mu sync.Mutex
	db *sql.DB
}

// NewPostgresRegistry returns an unconnected registry; the connection opens
// on first use.
func NewPostgresRegistry(cfg PostgresConfig) *PostgresRegistry {
	return &PostgresRegistry{cfg: cfg}
}

func (r *PostgresRegistry) connect(ctx context.Context) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		return r.db, nil
	}
	if r.cfg.DSN == "" {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "postgres", "dsn is required", nil)
	}
	db, err := sql.Open("pgx", r.cfg.DSN)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "open postgres", "", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrTransient, "registry", "ping postgres", "", err)
	}
	r.db = db
	return db, nil
}

// ListExistingMedia selects every distinct non-null value of the media column.
func (r *PostgresRegistry) ListExistingMedia(ctx context.Context) (map[string]struct{}, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	db, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	query := mediaQuery(r.cfg.Table, r.cfg.Column)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "query postgres", r.cfg.Table, err)
	}
	defer rows.Close()

	var media []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, services.Wrap(services.ErrTransient, "registry", "scan postgres", r.cfg.Table, err)
		}
		media = append(media, value)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "iterate postgres", r.cfg.Table, err)
	}
	return toSet(media), nil
}

// Close releases the connection pool.
func (r *PostgresRegistry) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// mediaQuery quotes identifiers; config validation already rejects quotes
// and separators in both names.
func mediaQuery(table, column string) string {
	return fmt.Sprintf(`SELECT DISTINCT %q FROM %q WHERE %q IS NOT NULL`, column, table, column)
}
