package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"bobbin/internal/config"
	"bobbin/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a minimal local-audio job for tests.
func NewJob(t testing.TB, store *queue.Store, collectionPath, title string) *queue.Item {
	t.Helper()

	media := "/media/" + title + ".mp3"
	payload, err := json.Marshal(map[string]any{
		"kind":     "audio",
		"locator":  media,
		"title":    title,
		"is_local": true,
	})
	if err != nil {
		t.Fatalf("marshal source: %v", err)
	}
	item, err := store.Enqueue(context.Background(), queue.NewItem{
		SourceKind:     "audio",
		SourceJSON:     string(payload),
		CollectionPath: collectionPath,
		Title:          title,
		Media:          media,
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}
