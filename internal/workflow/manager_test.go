package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"bobbin/internal/logging"
	"bobbin/internal/notifications"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/source"
	"bobbin/internal/stage"
	"bobbin/internal/testsupport"
	"bobbin/internal/workflow"
)

type stubStage struct {
	name        string
	mu          sync.Mutex
	seen        []int64
	executeHook func(*queue.Item) error
	health      stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Ready(name)}
}

func (s *stubStage) Prepare(_ context.Context, item *queue.Item) error {
	item.SetProgress(s.name, "preparing", 0)
	return nil
}

func (s *stubStage) Execute(_ context.Context, item *queue.Item) error {
	s.mu.Lock()
	s.seen = append(s.seen, item.ID)
	s.mu.Unlock()
	if s.executeHook != nil {
		return s.executeHook(item)
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   map[notifications.Event]notifications.Payload
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		n.last = make(map[notifications.Event]notifications.Payload)
	}
	n.events = append(n.events, event)
	n.last[event] = payload
	return nil
}

type stubClassifier struct {
	src source.Source
	err error
}

func (c stubClassifier) Classify(context.Context, string, source.Hints) (source.Source, error) {
	return c.src, c.err
}

type countingLister struct {
	media map[string]struct{}
	calls int
}

func (l *countingLister) ListExistingMedia(context.Context) (map[string]struct{}, error) {
	l.calls++
	return l.media, nil
}

func video(locator, title string) source.Source {
	return source.Source{
		Kind:   source.KindVideo,
		Record: source.Record{Locator: locator, CollectionPath: "talks", Title: title},
	}
}

func stubStages() (workflow.StageSet, []*stubStage) {
	stages := []*stubStage{
		newStubStage("acquisition"),
		newStubStage("transcription"),
		newStubStage("postprocess"),
		newStubStage("export"),
	}
	return workflow.StageSet{
		Acquisition:   stages[0],
		Transcription: stages[1],
		Postprocess:   stages[2],
		Export:        stages[3],
	}, stages
}

func TestSubmitFiltersAndEnqueues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	playlist := source.Source{
		Kind:   source.KindPlaylist,
		Record: source.Record{Locator: "https://example.com/list", CollectionPath: "talks"},
		Items: []source.Source{
			video("https://example.com/a", "A"),
			video("https://example.com/b", "B"),
			video("https://example.com/c", "C"),
		},
		Outcomes: []services.Outcome{services.Skip("https://example.com/d", "D", "metadata unavailable")},
	}
	lister := &countingLister{media: map[string]struct{}{"https://example.com/b": {}}}
	mgr := workflow.NewManager(cfg, store, stubClassifier{src: playlist}, lister, logging.NewNop(),
		workflow.WithNotifier(&recordingNotifier{}))
	t.Cleanup(func() { _ = mgr.Close() })

	opts := workflow.SubmitOptions{Exclusions: []string{"https://example.com/c"}}
	report, err := mgr.Submit(context.Background(), "https://example.com/list", opts)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(report.Added) != 1 || report.Excluded != 2 || len(report.Skipped) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	item, err := store.GetByID(context.Background(), report.Added[0])
	if err != nil || item == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.Title != "A" || item.Media != "https://example.com/a" || item.Status != queue.StatusQueued {
		t.Fatalf("unexpected queued item %+v", item)
	}

	again, err := mgr.Submit(context.Background(), "https://example.com/list", opts)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if len(again.Added) != 0 || len(again.Skipped) != 2 {
		t.Fatalf("expected duplicate playlist child to be skipped, got %+v", again)
	}
	if again.Skipped[1].Reason != "already queued" {
		t.Fatalf("unexpected skip reason %+v", again.Skipped[1])
	}
	if lister.calls != 1 {
		t.Fatalf("expected registry to be loaded once, got %d calls", lister.calls)
	}
}

func TestSubmitRejectsDuplicateSingleSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, stubClassifier{src: video("https://example.com/a", "A")}, nil, logging.NewNop(),
		workflow.WithNotifier(&recordingNotifier{}))
	t.Cleanup(func() { _ = mgr.Close() })

	first, err := mgr.Submit(context.Background(), "https://example.com/a", workflow.SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(first.Added) != 1 {
		t.Fatalf("expected one job added, got %+v", first)
	}

	second, err := mgr.Submit(context.Background(), "https://example.com/a", workflow.SubmitOptions{})
	var dup *queue.DuplicateSourceError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateSourceError, got %v (report %+v)", err, second)
	}
	if dup.CollectionPath != "talks" || dup.Title != "A" {
		t.Fatalf("unexpected duplicate %+v", dup)
	}
	if len(second.Added) != 0 || len(second.Skipped) != 0 {
		t.Fatalf("duplicate must not be reported as a skip, got %+v", second)
	}
	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a single queued job, got %d", len(items))
	}
}

func TestSubmitPropagatesClassificationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	classifyErr := services.Wrap(services.ErrInvalidSource, "source", "classify", "https://example.com/x", nil)
	mgr := workflow.NewManager(cfg, store, stubClassifier{err: classifyErr}, nil, logging.NewNop(),
		workflow.WithNotifier(&recordingNotifier{}))

	_, err := mgr.Submit(context.Background(), "https://example.com/x", workflow.SubmitOptions{})
	if !errors.Is(err, services.ErrInvalidSource) {
		t.Fatalf("expected invalid source error, got %v", err)
	}
}

func TestPreprocessWritesMetadataOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, stubClassifier{src: video("https://example.com/a", "A Talk")}, nil, logging.NewNop(),
		workflow.WithNotifier(&recordingNotifier{}))

	report, err := mgr.Preprocess(context.Background(), "https://example.com/a", workflow.SubmitOptions{})
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	want := filepath.Join(cfg.Paths.OutputDir, "talks", "metadata", "a-talk.json")
	if len(report.Metadata) != 1 || report.Metadata[0] != want {
		t.Fatalf("unexpected metadata paths %v", report.Metadata)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("metadata missing: %v", err)
	}
	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("preprocess must not queue jobs, got %d", len(items))
	}
}

func TestRunProcessesJobsSequentially(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first := testsupport.NewJob(t, store, "podcasts", "One")
	second := testsupport.NewJob(t, store, "podcasts", "Two")

	notifier := &recordingNotifier{}
	mgr := workflow.NewManager(cfg, store, nil, nil, logging.NewNop(), workflow.WithNotifier(notifier))
	t.Cleanup(func() { _ = mgr.Close() })
	set, stages := stubStages()
	mgr.ConfigureStages(set)

	summary, err := mgr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Completed) != 2 || summary.Completed[0] != first.ID || summary.Completed[1] != second.ID {
		t.Fatalf("unexpected completion order %v", summary.Completed)
	}
	for _, stg := range stages {
		if len(stg.seen) != 2 || stg.seen[0] != first.ID || stg.seen[1] != second.ID {
			t.Fatalf("stage %s saw %v", stg.name, stg.seen)
		}
	}
	for _, id := range []int64{first.ID, second.ID} {
		item, err := store.GetByID(context.Background(), id)
		if err != nil || item == nil {
			t.Fatalf("GetByID(%d): %v", id, err)
		}
		if item.Status != queue.StatusCompleted || item.CompletedAt == nil {
			t.Fatalf("job %d not completed: %+v", id, item)
		}
		if !strings.HasPrefix(item.WorkDir, mgr.ScratchPath()) {
			t.Fatalf("job %d work dir %q outside scratch %q", id, item.WorkDir, mgr.ScratchPath())
		}
	}
	status := mgr.Status(context.Background())
	if status.State != workflow.PipelineCompleted || status.Running {
		t.Fatalf("unexpected status %+v", status)
	}
	if got := notifier.events; len(got) != 4 || got[0] != notifications.EventRunStarted || got[3] != notifications.EventRunCompleted {
		t.Fatalf("unexpected notifications %v", got)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first := testsupport.NewJob(t, store, "podcasts", "One")
	second := testsupport.NewJob(t, store, "podcasts", "Two")
	third := testsupport.NewJob(t, store, "podcasts", "Three")

	notifier := &recordingNotifier{}
	mgr := workflow.NewManager(cfg, store, nil, nil, logging.NewNop(), workflow.WithNotifier(notifier))
	t.Cleanup(func() { _ = mgr.Close() })
	set, stages := stubStages()
	stages[1].executeHook = func(item *queue.Item) error {
		if item.ID == second.ID {
			return services.Wrap(services.ErrTranscription, "transcription", "whisperx", item.Title, errors.New("exit status 1"))
		}
		return nil
	}
	mgr.ConfigureStages(set)

	summary, err := mgr.Run(context.Background())
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if summary.FailedID != second.ID || len(summary.Completed) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	expect := map[int64]queue.Status{
		first.ID:  queue.StatusCompleted,
		second.ID: queue.StatusFailed,
		third.ID:  queue.StatusQueued,
	}
	for id, status := range expect {
		item, err := store.GetByID(context.Background(), id)
		if err != nil || item == nil {
			t.Fatalf("GetByID(%d): %v", id, err)
		}
		if item.Status != status {
			t.Fatalf("job %d status %s, want %s", id, item.Status, status)
		}
		if id == second.ID && item.ErrorKind != "transcription" {
			t.Fatalf("expected error kind transcription, got %q", item.ErrorKind)
		}
	}
	if len(stages[3].seen) != 1 {
		t.Fatalf("export must not run for the failed job, saw %v", stages[3].seen)
	}
	if mgr.Status(context.Background()).State != workflow.PipelineFailed {
		t.Fatal("expected failed pipeline state")
	}
	payload := notifier.last[notifications.EventRunCompleted]
	if payload["failed"] != 1 || payload["processed"] != 1 {
		t.Fatalf("unexpected run completion payload %v", payload)
	}
	if _, ok := notifier.last[notifications.EventError]; !ok {
		t.Fatal("expected error notification")
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, "podcasts", "Slow")

	mgr := workflow.NewManager(cfg, store, nil, nil, logging.NewNop(), workflow.WithNotifier(&recordingNotifier{}))
	t.Cleanup(func() { _ = mgr.Close() })
	set, stages := stubStages()
	started := make(chan struct{})
	release := make(chan struct{})
	stages[0].executeHook = func(*queue.Item) error {
		close(started)
		<-release
		return nil
	}
	mgr.ConfigureStages(set)

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Run(context.Background())
		done <- err
	}()
	<-started
	if _, err := mgr.Run(context.Background()); !errors.Is(err, workflow.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if !mgr.Status(context.Background()).Running {
		t.Fatal("expected running status during run")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestRunPreflightFailureLeavesQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "podcasts", "Waiting")

	mgr := workflow.NewManager(cfg, store, nil, nil, logging.NewNop(), workflow.WithNotifier(&recordingNotifier{}))
	set, stages := stubStages()
	stages[3].health = stage.NotReady("export", "no exporters configured")
	mgr.ConfigureStages(set)

	if _, err := mgr.Run(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	item, err := store.GetByID(context.Background(), job.ID)
	if err != nil || item == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.Status != queue.StatusQueued {
		t.Fatalf("job should stay queued, got %s", item.Status)
	}
}

func TestRunRequeuesInterruptedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "podcasts", "Interrupted")
	job.Status = queue.StatusInProgress
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	mgr := workflow.NewManager(cfg, store, nil, nil, logging.NewNop(), workflow.WithNotifier(&recordingNotifier{}))
	t.Cleanup(func() { _ = mgr.Close() })
	set, _ := stubStages()
	mgr.ConfigureStages(set)

	summary, err := mgr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Reset != 1 || len(summary.Completed) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestCloseRemovesScratchUnlessKept(t *testing.T) {
	for _, keep := range []bool{false, true} {
		cfg := testsupport.NewConfig(t)
		store := testsupport.MustOpenStore(t, cfg)
		testsupport.NewJob(t, store, "podcasts", "Scratch")
		mgr := workflow.NewManager(cfg, store, nil, nil, logging.NewNop(),
			workflow.WithNotifier(&recordingNotifier{}), workflow.WithKeepScratch(keep))
		set, _ := stubStages()
		mgr.ConfigureStages(set)
		if _, err := mgr.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if err := mgr.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		_, err := os.Stat(mgr.ScratchPath())
		if keep && err != nil {
			t.Fatalf("kept scratch tree missing: %v", err)
		}
		if !keep && !os.IsNotExist(err) {
			t.Fatalf("expected scratch tree removed, stat err %v", err)
		}
	}
}

func TestEachRunGetsFreshScratchAndRegistry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lister := &countingLister{media: map[string]struct{}{}}
	mgr := workflow.NewManager(cfg, store, stubClassifier{src: video("https://example.com/a", "A")}, lister, logging.NewNop(),
		workflow.WithNotifier(&recordingNotifier{}))
	t.Cleanup(func() { _ = mgr.Close() })
	set, _ := stubStages()
	mgr.ConfigureStages(set)

	if _, err := mgr.Submit(context.Background(), "https://example.com/a", workflow.SubmitOptions{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	firstScratch := mgr.ScratchPath()
	if _, err := os.Stat(firstScratch); !os.IsNotExist(err) {
		t.Fatalf("expected first run scratch removed, stat err %v", err)
	}

	lister.media["https://example.com/a"] = struct{}{}
	report, err := mgr.Submit(context.Background(), "https://example.com/a", workflow.SubmitOptions{})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if lister.calls != 2 || report.Excluded != 1 || len(report.Added) != 0 {
		t.Fatalf("expected registry reloaded after run, calls=%d report=%+v", lister.calls, report)
	}

	testsupport.NewJob(t, store, "podcasts", "Later")
	if _, err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if mgr.ScratchPath() == firstScratch {
		t.Fatal("expected second run to use a new scratch tree")
	}
}

func TestRunWritesJobLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Format = "json"
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "podcasts", "Logged")

	mgr := workflow.NewManager(cfg, store, nil, nil, logging.NewNop(), workflow.WithNotifier(&recordingNotifier{}))
	t.Cleanup(func() { _ = mgr.Close() })
	set, _ := stubStages()
	mgr.ConfigureStages(set)
	if _, err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	path := workflow.NewJobLogger(cfg).Path(job)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	if !strings.Contains(string(data), "stage_complete") || !strings.Contains(string(data), "job_complete") {
		t.Fatalf("job log missing stage events:\n%s", data)
	}
}
