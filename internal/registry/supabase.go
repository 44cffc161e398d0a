package registry

import (
	"context"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"

	"bobbin/internal/services"
)

// SupabaseRegistry reads media through the Supabase REST API.
type SupabaseRegistry struct {
	client *supabase.Client
	table  string
	column string
}

// NewSupabaseRegistry initializes the SDK client for projectURL.
func NewSupabaseRegistry(projectURL, key, table, column string) (*SupabaseRegistry, error) {
	if projectURL == "" || key == "" {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "supabase", "project url and key are required", nil)
	}
	client, err := supabase.NewClient(projectURL, key, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "initialize supabase sdk", projectURL, err)
	}
	return &SupabaseRegistry{client: client, table: table, column: column}, nil
}

// ListExistingMedia selects the media column of every row. The SDK does not
// take a context, so cancellation is checked before the call only.
func (r *SupabaseRegistry) ListExistingMedia(ctx context.Context) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []map[string]any
	if _, err := r.client.From(r.table).Select(r.column, "", false).ExecuteTo(&rows); err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "query supabase", r.table, err)
	}
	media := make([]string, 0, len(rows))
	for _, row := range rows {
		if value, ok := row[r.column]; ok && value != nil {
			media = append(media, fmt.Sprint(value))
		}
	}
	return toSet(media), nil
}
