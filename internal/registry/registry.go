// Package registry answers "which media has already been transcribed" for the
// deduplication filter. Each backend reads the set from a different system of
// record; all of them return media locators verbatim.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bobbin/internal/config"
	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
)

// Registry lists media identities that are already transcribed.
type Registry interface {
	ListExistingMedia(ctx context.Context) (map[string]struct{}, error)
}

// Closer is implemented by backends that hold connections.
type Closer interface {
	Close(ctx context.Context) error
}

// New builds the registry backend selected by cfg.Registry.Backend.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("registry: config is required")
	}
	logger = logging.NewComponentLogger(logger, "registry")
	r := cfg.Registry
	timeout := time.Duration(r.TimeoutSeconds) * time.Second

	switch r.Backend {
	case config.RegistryNone:
		return None{}, nil
	case config.RegistryStore:
		if store == nil {
			return nil, services.Wrap(services.ErrConfiguration, "registry", "store", "queue store unavailable", nil)
		}
		return NewStoreRegistry(store), nil
	case config.RegistryDirectory:
		return NewDirectoryRegistry(r.Dir, logger), nil
	case config.RegistryHTTP:
		return NewHTTPRegistry(r.URL, timeout), nil
	case config.RegistryPostgres:
		return NewPostgresRegistry(PostgresConfig{DSN: r.DSN, Table: r.Table, Column: r.Column, Timeout: timeout}), nil
	case config.RegistrySupabase:
		return NewSupabaseRegistry(r.SupabaseURL, r.SupabaseKey, r.Table, r.Column)
	case config.RegistryMongo:
		return NewMongoRegistry(MongoConfig{
			URI:        r.MongoURI,
			Database:   r.MongoDatabase,
			Collection: r.MongoCollection,
			Field:      r.Column,
			Timeout:    timeout,
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "registry", "select backend",
			fmt.Sprintf("unsupported backend %q", r.Backend), nil)
	}
}

// None reports an empty registry.
type None struct{}

// ListExistingMedia returns an empty set.
func (None) ListExistingMedia(context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

// StoreRegistry treats completed jobs in the local queue as transcribed.
type StoreRegistry struct {
	store *queue.Store
}

// NewStoreRegistry wraps the queue store.
func NewStoreRegistry(store *queue.Store) *StoreRegistry {
	return &StoreRegistry{store: store}
}

// ListExistingMedia returns media of every completed job.
func (r *StoreRegistry) ListExistingMedia(ctx context.Context) (map[string]struct{}, error) {
	media, err := r.store.CompletedMedia(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "list completed", "queue lookup failed", err)
	}
	return toSet(media), nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// CloseRegistry releases connections held by r, if any.
func CloseRegistry(ctx context.Context, r Registry) error {
	if c, ok := r.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
