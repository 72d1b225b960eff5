package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/speclens/speclens/internal/core"
)

type stubRunQuerier struct {
	limit int
	runs  []core.CheckRun
	byID  map[string]*core.CheckRun
	err   error
}

func (s *stubRunQuerier) GetCheckRun(ctx context.Context, id string) (*core.CheckRun, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byID[id], nil
}

func (s *stubRunQuerier) ListCheckRuns(ctx context.Context, limit int) ([]core.CheckRun, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.runs, nil
}

func TestRunsHandlerListsRuns(t *testing.T) {
	querier := &stubRunQuerier{
		runs: []core.CheckRun{
			{ID: "run-new", Total: 4, Broken: 1},
			{ID: "run-old", Total: 2},
		},
	}
	SetRunQuerier(querier)
	t.Cleanup(func() { SetRunQuerier(nil) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=2", nil)
	rec := httptest.NewRecorder()

	RunsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if querier.limit != 2 {
		t.Fatalf("expected limit 2 to reach the store, got %d", querier.limit)
	}

	var resp RunListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Runs) != 2 || resp.Runs[0].ID != "run-new" {
		t.Fatalf("unexpected runs in response: %+v", resp.Runs)
	}
}

func TestRunsHandlerDefaultsAndCapsLimit(t *testing.T) {
	querier := &stubRunQuerier{}
	SetRunQuerier(querier)
	t.Cleanup(func() { SetRunQuerier(nil) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	RunsHandler(httptest.NewRecorder(), req)
	if querier.limit != defaultRunsLimit {
		t.Fatalf("expected default limit %d, got %d", defaultRunsLimit, querier.limit)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=5000", nil)
	RunsHandler(httptest.NewRecorder(), req)
	if querier.limit != maxRunsLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxRunsLimit, querier.limit)
	}
}

func TestRunsHandlerRejectsBadLimit(t *testing.T) {
	SetRunQuerier(&stubRunQuerier{})
	t.Cleanup(func() { SetRunQuerier(nil) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=soon", nil)
	rec := httptest.NewRecorder()

	RunsHandler(rec, req)

	assertErrorCode(t, rec, http.StatusBadRequest, "INVALID_INPUT")
}

func TestRunHandlerReturnsRun(t *testing.T) {
	querier := &stubRunQuerier{
		byID: map[string]*core.CheckRun{
			"run-1": {
				ID: "run-1",
				Statuses: map[string]core.UrlStatus{
					"https://example.com/": core.StatusNotFound,
				},
				Total:  1,
				Broken: 1,
			},
		},
	}
	SetRunQuerier(querier)
	t.Cleanup(func() { SetRunQuerier(nil) })

	rec := httptest.NewRecorder()
	RunHandler(rec, runRequest("run-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var run core.CheckRun
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if run.ID != "run-1" || run.Statuses["https://example.com/"] != core.StatusNotFound {
		t.Fatalf("unexpected run in response: %+v", run)
	}
}

func TestRunHandlerMissingRun(t *testing.T) {
	SetRunQuerier(&stubRunQuerier{})
	t.Cleanup(func() { SetRunQuerier(nil) })

	rec := httptest.NewRecorder()
	RunHandler(rec, runRequest("no-such-run"))

	assertErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}

// runRequest builds a GET request carrying the chi URL parameter the
// handler reads.
func runRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
