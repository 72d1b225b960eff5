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

type stubAuditQuerier struct {
	limit  int
	audits []core.AuditRun
	byID   map[string]*core.AuditRun
}

func (s *stubAuditQuerier) GetAuditRun(ctx context.Context, id string) (*core.AuditRun, error) {
	return s.byID[id], nil
}

func (s *stubAuditQuerier) ListAuditRuns(ctx context.Context, limit int) ([]core.AuditRun, error) {
	s.limit = limit
	return s.audits, nil
}

func TestAuditsHandlerListsAudits(t *testing.T) {
	querier := &stubAuditQuerier{
		audits: []core.AuditRun{
			{ID: "audit-new", PackagesTotal: 120, URLsTotal: 300, URLsBroken: 7},
			{ID: "audit-old", PackagesTotal: 118, URLsTotal: 295, URLsBroken: 9},
		},
	}
	SetAuditQuerier(querier)
	t.Cleanup(func() { SetAuditQuerier(nil) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audits?limit=2", nil)
	rec := httptest.NewRecorder()

	AuditsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if querier.limit != 2 {
		t.Fatalf("expected limit 2 to reach the store, got %d", querier.limit)
	}

	var resp AuditListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Audits) != 2 || resp.Audits[0].ID != "audit-new" {
		t.Fatalf("unexpected audits in response: %+v", resp.Audits)
	}
}

func TestAuditsHandlerWithoutStore(t *testing.T) {
	SetAuditQuerier(nil)

	rec := httptest.NewRecorder()
	AuditsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audits", nil))

	assertErrorCode(t, rec, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
}

func TestAuditHandlerReturnsAudit(t *testing.T) {
	querier := &stubAuditQuerier{
		byID: map[string]*core.AuditRun{
			"audit-1": {ID: "audit-1", Root: "/srv/checkout", Mismatches: 4},
		},
	}
	SetAuditQuerier(querier)
	t.Cleanup(func() { SetAuditQuerier(nil) })

	rec := httptest.NewRecorder()
	AuditHandler(rec, auditRequest("audit-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var run core.AuditRun
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if run.ID != "audit-1" || run.Mismatches != 4 {
		t.Fatalf("unexpected audit in response: %+v", run)
	}
}

func TestAuditHandlerMissingAudit(t *testing.T) {
	SetAuditQuerier(&stubAuditQuerier{})
	t.Cleanup(func() { SetAuditQuerier(nil) })

	rec := httptest.NewRecorder()
	AuditHandler(rec, auditRequest("no-such-audit"))

	assertErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func auditRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audits/"+id, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
