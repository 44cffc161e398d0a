package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"bobbin/internal/api"
	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/testsupport"
	"bobbin/internal/workflow"
)

type stubBackend struct {
	submitted []string
	opts      workflow.SubmitOptions
	report    workflow.SubmitReport
	err       error
	runErr    error
	runs      int
}

func (s *stubBackend) Submit(_ context.Context, locator string, opts workflow.SubmitOptions) (workflow.SubmitReport, error) {
	s.submitted = append(s.submitted, locator)
	s.opts = opts
	return s.report, s.err
}

func (s *stubBackend) Preprocess(ctx context.Context, locator string, opts workflow.SubmitOptions) (workflow.SubmitReport, error) {
	return s.Submit(ctx, "preprocess:"+locator, opts)
}

func (s *stubBackend) StartRun() error {
	if s.runErr != nil {
		return s.runErr
	}
	s.runs++
	return nil
}

func (s *stubBackend) Status(context.Context) Status {
	return Status{
		Running:   true,
		RunActive: s.runs > 0,
		PID:       42,
		Workflow: workflow.StatusSummary{
			State:      workflow.PipelineIdle,
			QueueStats: map[queue.Status]int{queue.StatusQueued: 1},
		},
	}
}

func newTestServer(t *testing.T, token string, backend *stubBackend) (*apiServer, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return newAPIServer("", token, backend, api.NewQueueService(store), logging.NewNop()), store
}

func doRequest(t *testing.T, srv *apiServer, method, path, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := srv.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestAPIServerRequiresBearerToken(t *testing.T) {
	srv, _ := newTestServer(t, "secret", &stubBackend{})

	resp, _ := doRequest(t, srv, http.MethodGet, "/api/status", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, srv, http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	resp, body := doRequest(t, srv, http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", resp.StatusCode, body)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.PID != 42 || status.Workflow.State != "idle" || status.Workflow.QueueStats["queued"] != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestAPIServerQueueRoutes(t *testing.T) {
	srv, store := newTestServer(t, "", &stubBackend{})
	first := testsupport.NewJob(t, store, "podcasts/show", "one")
	second := testsupport.NewJob(t, store, "podcasts/show", "two")
	second.SetFailed("boom", "transcription")
	if err := store.Update(context.Background(), second); err != nil {
		t.Fatalf("Update: %v", err)
	}

	resp, body := doRequest(t, srv, http.MethodGet, "/api/queue?status=failed", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", resp.StatusCode, body)
	}
	var list api.QueueListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Title != "two" || list.Items[0].ErrorKind != "transcription" {
		t.Fatalf("unexpected list %+v", list.Items)
	}

	resp, _ = doRequest(t, srv, http.MethodGet, "/api/queue?status=bogus", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}

	resp, body = doRequest(t, srv, http.MethodGet, "/api/queue/"+itoa(first.ID), "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"title":"one"`) {
		t.Fatalf("describe: %d %s", resp.StatusCode, body)
	}
	resp, _ = doRequest(t, srv, http.MethodGet, "/api/queue/9999", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, srv, http.MethodGet, "/api/queue/abc", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.StatusCode)
	}

	resp, body = doRequest(t, srv, http.MethodPost, "/api/queue/retry", `{"ids":[`+itoa(second.ID)+`]}`, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"outcome":"retried"`) {
		t.Fatalf("retry: %d %s", resp.StatusCode, body)
	}

	resp, _ = doRequest(t, srv, http.MethodDelete, "/api/queue/"+itoa(first.ID), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove: %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, srv, http.MethodDelete, "/api/queue/"+itoa(first.ID), "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 removing twice, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/queue/clear?scope=nonsense", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad scope, got %d", resp.StatusCode)
	}
	resp, body = doRequest(t, srv, http.MethodPost, "/api/queue/clear", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"removedCount":1`) {
		t.Fatalf("clear: %d %s", resp.StatusCode, body)
	}
}

func TestAPIServerSubmit(t *testing.T) {
	backend := &stubBackend{report: workflow.SubmitReport{
		Added:    []int64{7},
		Excluded: 2,
		Skipped:  []services.Outcome{services.Skip("https://x/2", "Two", "already queued")},
	}}
	srv, _ := newTestServer(t, "", backend)

	body := `{"source":"https://example.com/feed.rss","collectionPath":"podcasts/show","cutoff":"2024-01-01","diarize":true}`
	resp, data := doRequest(t, srv, http.MethodPost, "/api/submit", body, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}
	var out api.SubmitResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Added) != 1 || out.Added[0] != 7 || out.Excluded != 2 || len(out.Skipped) != 1 {
		t.Fatalf("unexpected response %+v", out)
	}
	if backend.submitted[0] != "https://example.com/feed.rss" || !backend.opts.Diarize || backend.opts.Cutoff == nil {
		t.Fatalf("unexpected backend call %v %+v", backend.submitted, backend.opts)
	}

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/preprocess", body, nil)
	if resp.StatusCode != http.StatusCreated || backend.submitted[1] != "preprocess:https://example.com/feed.rss" {
		t.Fatalf("preprocess: %d %v", resp.StatusCode, backend.submitted)
	}

	resp, data = doRequest(t, srv, http.MethodPost, "/api/submit", `{"collectionPath":"x"}`, nil)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(data), `"code":"validation"`) {
		t.Fatalf("expected validation 400, got %d: %s", resp.StatusCode, data)
	}

	backend.err = services.Wrap(services.ErrInvalidSource, "classify", "", "unsupported locator ftp://x", nil)
	resp, _ = doRequest(t, srv, http.MethodPost, "/api/submit", `{"source":"ftp://x"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid source, got %d", resp.StatusCode)
	}

	backend.err = &queue.DuplicateSourceError{CollectionPath: "talks", Title: "A"}
	resp, data = doRequest(t, srv, http.MethodPost, "/api/submit", `{"source":"/a.mp3"}`, nil)
	if resp.StatusCode != http.StatusConflict || !strings.Contains(string(data), "duplicate source") {
		t.Fatalf("expected 409 for duplicate source, got %d: %s", resp.StatusCode, data)
	}

	backend.err = services.Wrap(services.ErrTransient, "submit", "registry", "lookup failed", nil)
	resp, _ = doRequest(t, srv, http.MethodPost, "/api/submit", `{"source":"/a.mp3"}`, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 for registry failure, got %d", resp.StatusCode)
	}
}

func TestAPIServerRun(t *testing.T) {
	backend := &stubBackend{}
	srv, _ := newTestServer(t, "", backend)

	resp, _ := doRequest(t, srv, http.MethodPost, "/api/run", "", nil)
	if resp.StatusCode != http.StatusAccepted || backend.runs != 1 {
		t.Fatalf("expected 202 and one run, got %d / %d", resp.StatusCode, backend.runs)
	}

	backend.runErr = workflow.ErrRunInProgress
	resp, data := doRequest(t, srv, http.MethodPost, "/api/run", "", nil)
	if resp.StatusCode != http.StatusConflict || !strings.Contains(string(data), "run already in progress") {
		t.Fatalf("expected 409, got %d: %s", resp.StatusCode, data)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
