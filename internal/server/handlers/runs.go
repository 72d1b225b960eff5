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

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunQuerier reads check run history for the API.
type RunQuerier interface {
	GetCheckRun(ctx context.Context, id string) (*core.CheckRun, error)
	ListCheckRuns(ctx context.Context, limit int) ([]core.CheckRun, error)
}

var runQuerier RunQuerier

// SetRunQuerier injects the run store used by the runs handlers.
func SetRunQuerier(querier RunQuerier) {
	runQuerier = querier
}

// RunListResponse is the body of GET /api/v1/runs. Listed runs carry
// their tallies but not the per-URL statuses; fetch a single run for
// those.
type RunListResponse struct {
	Runs []core.CheckRun `json:"runs"`
}

// RunsHandler handles GET /api/v1/runs.
func RunsHandler(w http.ResponseWriter, r *http.Request) {
	if runQuerier == nil {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "run store not initialized")
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

	runs, err := runQuerier.ListCheckRuns(r.Context(), limit)
	if err != nil {
		envelope := errors.NewErrorEnvelope("STORE_ERROR", "listing check runs failed")
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"original_error": err.Error(),
		})
		respondWithError(w, r, envelope)
		return
	}
	if runs == nil {
		runs = []core.CheckRun{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RunListResponse{Runs: runs})
}

// RunHandler handles GET /api/v1/runs/{id}.
func RunHandler(w http.ResponseWriter, r *http.Request) {
	if runQuerier == nil {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "run store not initialized")
		respondWithError(w, r, envelope)
		return
	}

	id := chi.URLParam(r, "id")
	run, err := runQuerier.GetCheckRun(r.Context(), id)
	if err != nil {
		envelope := errors.NewErrorEnvelope("STORE_ERROR", "fetching check run failed")
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"run":            id,
			"original_error": err.Error(),
		})
		respondWithError(w, r, envelope)
		return
	}
	if run == nil {
		envelope := errors.NewErrorEnvelope("NOT_FOUND", "no check run with that id")
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"run": id,
		})
		respondWithError(w, r, envelope)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(run)
}
