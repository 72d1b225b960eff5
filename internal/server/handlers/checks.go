package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/speclens/speclens/internal/core"
)

// maxCheckURLs caps one API request; larger lists belong in a tree
// audit, not an ad-hoc check.
const maxCheckURLs = 1000

// CheckRequest is the body of POST /api/v1/checks.
type CheckRequest struct {
	URLs []string `json:"urls"`
	// UseCache overrides the configured cache default when set.
	UseCache *bool `json:"use_cache,omitempty"`
}

// CheckRunner runs one URL check on behalf of the API.
type CheckRunner interface {
	RunCheck(ctx context.Context, urls []string, useCache *bool) (*core.CheckRun, error)
}

var checkRunner CheckRunner

// SetCheckRunner injects the check service used by ChecksHandler.
func SetCheckRunner(runner CheckRunner) {
	checkRunner = runner
}

// ChecksHandler handles POST /api/v1/checks: it checks the submitted
// URLs synchronously and returns the completed run.
func ChecksHandler(w http.ResponseWriter, r *http.Request) {
	if checkRunner == nil {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "check service not initialized")
		respondWithError(w, r, envelope)
		return
	}

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		envelope := errors.NewErrorEnvelope("INVALID_INPUT", "request body is not valid JSON")
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"decode_error": err.Error(),
		})
		respondWithError(w, r, envelope)
		return
	}

	if len(req.URLs) == 0 {
		envelope := errors.NewErrorEnvelope("INVALID_INPUT", "urls must not be empty")
		respondWithError(w, r, envelope)
		return
	}
	if len(req.URLs) > maxCheckURLs {
		envelope := errors.NewErrorEnvelope("INVALID_INPUT", "too many URLs in one request")
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"urls":  len(req.URLs),
			"limit": maxCheckURLs,
		})
		respondWithError(w, r, envelope)
		return
	}

	run, err := checkRunner.RunCheck(r.Context(), req.URLs, req.UseCache)
	if err != nil {
		envelope := errors.NewErrorEnvelope("PROBE_FAILED", "URL check failed")
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"original_error": err.Error(),
		})
		respondWithError(w, r, envelope)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(run)
}
