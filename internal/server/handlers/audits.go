package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/go-chi/chi/v5"

	"github.com/speclens/speclens/internal/core"
)

// AuditQuerier reads audit run history for the API.
type AuditQuerier interface {
	GetAuditRun(ctx context.Context, id string) (*core.AuditRun, error)
	ListAuditRuns(ctx context.Context, limit int) ([]core.AuditRun, error)
}

var auditQuerier AuditQuerier

// SetAuditQuerier injects the audit store used by the audits handlers.
func SetAuditQuerier(querier AuditQuerier) {
	auditQuerier = querier
}

// AuditListResponse is the body of GET /api/v1/audits. An audit run
// carries only its tallies; the per-URL detail lives in the reports
// the sweep wrote.
type AuditListResponse struct {
	Audits []core.AuditRun `json:"audits"`
}

// AuditsHandler handles GET /api/v1/audits.
func AuditsHandler(w http.ResponseWriter, r *http.Request) {
	if auditQuerier == nil {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "audit store not initialized")
		respondWithError(w, r, envelope)
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			envelope := errors.NewErrorEnvelope("INVALID_INPUT", "limit must be a positive integer")
			respondWithError(w, r, envelope)
			return
		}
		limit = parsed
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	audits, err := auditQuerier.ListAuditRuns(r.Context(), limit)
	if err != nil {
		envelope := errors.NewErrorEnvelope("STORE_ERROR", "listing audit runs failed")
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"original_error": err.Error(),
		})
		respondWithError(w, r, envelope)
		return
	}
	if audits == nil {
		audits = []core.AuditRun{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(AuditListResponse{Audits: audits})
}

// AuditHandler handles GET /api/v1/audits/{id}.
func AuditHandler(w http.ResponseWriter, r *http.Request) {
	if auditQuerier == nil {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "audit store not initialized")
		respondWithError(w, r, envelope)
		return
	}

	id := chi.URLParam(r, "id")
	run, err := auditQuerier.GetAuditRun(r.Context(), id)
	if err != nil {
		envelope := errors.NewErrorEnvelope("STORE_ERROR", "fetching audit run failed")
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"audit":          id,
			"original_error": err.Error(),
		})
		respondWithError(w, r, envelope)
		return
	}
	if run == nil {
		envelope := errors.NewErrorEnvelope("NOT_FOUND", "no audit run with that id")
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"audit": id,
		})
		respondWithError(w, r, envelope)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(run)
}
