//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/schedule"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/session"
)

type fakeSchedules struct {
	mu   sync.Mutex
	jobs []domain.JobInfo
}

func (f *fakeSchedules) List() iter.Seq[domain.JobInfo] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Values(slices.Clone(f.jobs))
}

func (f *fakeSchedules) Cancel(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, job := range f.jobs {
		if job.Name == name {
			f.jobs = slices.Delete(f.jobs, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", schedule.ErrNotFound, name)
}

type fakeRuns struct {
	mu      sync.Mutex
	runs    []*domain.TaskRun
	pingErr error
	limit   int
}

func (f *fakeRuns) RecentRuns(_ context.Context, limit int) ([]*domain.TaskRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	return f.runs[:min(limit, len(f.runs))], nil
}

func (f *fakeRuns) lastLimit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limit
}

func (f *fakeRuns) Ping(context.Context) error { return f.pingErr }

type fakeProber struct{ err error }

func (f fakeProber) Health(context.Context) error { return f.err }

func newTestServer(t *testing.T, sched *fakeSchedules, runs *fakeRuns, state *session.State, token string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(
		NewHandler(sched, runs, state),
		NewHealthHandler(runs, fakeProber{}, nil),
		nil,
		token,
	))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestSchedulesEndpoints(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedules{jobs: []domain.JobInfo{
		{Name: "btc", Seconds: 600, Prompt: "price check", CreatedAt: time.Now().Add(-time.Hour)},
	}}
	srv := newTestServer(t, sched, &fakeRuns{}, session.New(), "tok")

	resp, body := do(t, http.MethodGet, srv.URL+"/api/schedules", "tok")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	list := body["schedules"].([]any)
	first := list[0].(map[string]any)
	if body["count"] != float64(1) || first["name"] != "btc" || first["interval_seconds"] != float64(600) {
		t.Fatalf("unexpected body %v", body)
	}
	if first["age"] != "1 hour ago" {
		t.Fatalf("expected humanized age, got %v", first["age"])
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/schedules/missing", "tok")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown schedule, got %d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/schedules/btc", "tok")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if _, body = do(t, http.MethodGet, srv.URL+"/api/schedules", "tok"); body["count"] != float64(0) {
		t.Fatalf("schedule should be gone, got %v", body)
	}
}

func TestAdminRequiresToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeSchedules{}, &fakeRuns{}, session.New(), "tok")

	if resp, _ := do(t, http.MethodGet, srv.URL+"/api/schedules", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodGet, srv.URL+"/health", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("health must stay public, got %d", resp.StatusCode)
	}
}

func TestRunsEndpoint(t *testing.T) {
	t.Parallel()

	runs := &fakeRuns{runs: []*domain.TaskRun{
		{ID: "b", Status: domain.RunSucceeded},
		{ID: "a", Status: domain.RunFailed, Error: "boom"},
	}}
	srv := newTestServer(t, &fakeSchedules{}, runs, session.New(), "tok")

	resp, body := do(t, http.MethodGet, srv.URL+"/api/runs?limit=1", "tok")
	if resp.StatusCode != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("unexpected response %d %v", resp.StatusCode, body)
	}
	if got := runs.lastLimit(); got != 1 {
		t.Fatalf("limit not forwarded, got %d", got)
	}

	if resp, _ := do(t, http.MethodGet, srv.URL+"/api/runs?limit=abc", "tok"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestSessionEndpoints(t *testing.T) {
	t.Parallel()

	state := session.New()
	state.Set("ctx-A")
	srv := newTestServer(t, &fakeSchedules{}, &fakeRuns{}, state, "tok")

	_, body := do(t, http.MethodGet, srv.URL+"/api/session", "tok")
	if body["active"] != true || body["context_id"] != "ctx-A" {
		t.Fatalf("unexpected session body %v", body)
	}

	_, body = do(t, http.MethodDelete, srv.URL+"/api/session", "tok")
	if body["cleared"] != true || state.Current() != "" {
		t.Fatalf("reset failed: %v, current=%q", body, state.Current())
	}
}

func TestHealthDegraded(t *testing.T) {
	t.Parallel()

	runs := &fakeRuns{pingErr: errors.New("disk gone")}
	h := NewHealthHandler(runs, fakeProber{err: errors.New("refused")}, nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Status != "degraded" || body.Checks["database"] != "unreachable" || body.Checks["agent"] != "unreachable" {
		t.Fatalf("unexpected body %+v", body)
	}
}

type fakeCounter int

func (f fakeCounter) Len() int { return int(f) }

func TestHealthReportsEventSubscribers(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(&fakeRuns{}, nil, fakeCounter(3))

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != "healthy" || body["event_subscribers"] != float64(3) {
		t.Fatalf("unexpected body %v", body)
	}
}
