package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bobbin/internal/api"
	"bobbin/internal/queue"
	"bobbin/internal/testsupport"
)

func TestAddQueuesLocalFileAndListsIt(t *testing.T) {
	env := setupCLITestEnv(t)
	media := testsupport.WriteMedia(t, filepath.Join(env.baseDir, "media", "talk.mp3"), 64)

	out, _, err := runCLI(t, []string{"add", media, "--collection", "talks", "--title", "A Talk", "--tags", "a,b", "--episode", "3"}, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "A Talk")
	requireContains(t, out, "Queued 1, excluded 0, skipped 0")

	_, _, err = runCLI(t, []string{"add", media, "--collection", "talks", "--title", "A Talk"}, env.configPath)
	var dup *queue.DuplicateSourceError
	if !errors.As(err, &dup) {
		t.Fatalf("expected second add to fail as a duplicate, got %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "A Talk")
	requireContains(t, out, "talks")

	out, _, err = runCLI(t, []string{"queue", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	var resp api.QueueListResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Status != string(queue.StatusQueued) {
		t.Fatalf("unexpected list %+v", resp.Items)
	}

	out, _, err = runCLI(t, []string{"queue", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Queued")
}

func TestAddRejectsInvalidDate(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"add", "https://example.com/a.mp3", "--date", "2024-13-40"}, env.configPath); err == nil {
		t.Fatal("expected date validation error")
	}
}

func TestPreprocessWritesMetadataOnly(t *testing.T) {
	env := setupCLITestEnv(t)
	media := testsupport.WriteMedia(t, filepath.Join(env.baseDir, "media", "talk.mp3"), 64)

	out, _, err := runCLI(t, []string{"preprocess", media, "--collection", "talks", "--title", "A Talk"}, env.configPath)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	requireContains(t, out, "Wrote metadata")
	requireContains(t, out, "Queued 0")

	want := filepath.Join(env.cfg.Paths.OutputDir, "talks", "metadata", "a-talk.json")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected metadata at %s: %v", want, err)
	}
	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueRetryRemoveAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, env.cfg)

	alpha := testsupport.NewJob(t, store, "podcasts/show", "alpha")
	alpha.SetFailed("download failed", "acquisition")
	if err := store.Update(ctx, alpha); err != nil {
		t.Fatalf("update alpha: %v", err)
	}
	beta := testsupport.NewJob(t, store, "podcasts/show", "beta")

	out, _, err := runCLI(t, []string{"queue", "retry", itoa(beta.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry beta: %v", err)
	}
	requireContains(t, out, "has not failed")

	out, _, err = runCLI(t, []string{"queue", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed items")
	got, err := store.GetByID(ctx, alpha.ID)
	if err != nil || got == nil {
		t.Fatalf("lookup alpha: %v", err)
	}
	if got.Status != queue.StatusQueued {
		t.Fatalf("expected queued, got %s", got.Status)
	}

	out, _, err = runCLI(t, []string{"queue", "show", itoa(alpha.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, `"title": "alpha"`)

	out, _, err = runCLI(t, []string{"queue", "remove", itoa(alpha.ID), "999"}, env.configPath)
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Removed job #"+itoa(alpha.ID))
	requireContains(t, out, "Job #999 not found")

	if _, _, err := runCLI(t, []string{"queue", "remove", "abc"}, env.configPath); err == nil {
		t.Fatal("expected invalid id error")
	}
	if _, _, err := runCLI(t, []string{"queue", "clear", "--completed", "--failed"}, env.configPath); err == nil {
		t.Fatal("expected conflicting flags error")
	}

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 queue items")
}

func TestQueueListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"queue", "list", "--status", "pending"}, env.configPath); err == nil {
		t.Fatal("expected unknown status error")
	}
}
