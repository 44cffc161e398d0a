package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bobbin/internal/services"
)

const maxRegistryPayload = 32 << 20

var errUnexpectedPayload = errors.New("unexpected registry payload")

// HTTPRegistry fetches a JSON document listing transcribed media. Both a bare
// array of strings and an object with a "media" array are accepted.
type HTTPRegistry struct {
	url    string
	client *http.Client
}

// NewHTTPRegistry builds a registry that GETs url.
func NewHTTPRegistry(url string, timeout time.Duration) *HTTPRegistry {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRegistry{url: url, client: &http.Client{Timeout: timeout}}
}

// ListExistingMedia downloads and decodes the media list.
func (r *HTTPRegistry) ListExistingMedia(ctx context.Context) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "build request", r.url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "fetch", r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "registry", "fetch",
			fmt.Sprintf("%s returned %s", r.url, resp.Status), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRegistryPayload))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "read body", r.url, err)
	}
	media, err := decodeMediaList(body)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "registry", "decode", r.url, err)
	}
	return toSet(media), nil
}

func decodeMediaList(body []byte) ([]string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	switch body[0] {
	case '[':
		var list []string
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		var wrapped struct {
			Media []string `json:"media"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Media, nil
	default:
		return nil, errUnexpectedPayload
	}
}
