package core

import "time"

// CheckRun captures the aggregate result of one URL checking run.
type CheckRun struct {
	ID            string               `json:"id"`
	StartedAt     time.Time            `json:"started_at"`
	FinishedAt    time.Time            `json:"finished_at"`
	Statuses      map[string]UrlStatus `json:"statuses"`
	Counts        map[UrlStatus]int    `json:"counts"`
	Total         int                  `json:"total"`
	Broken        int                  `json:"broken"`
	FromCache     int                  `json:"from_cache,omitempty"`
	FailedBatches int                  `json:"failed_batches,omitempty"`
	Passes        int                  `json:"passes"`
}

// Tally recomputes Counts, Total and Broken from Statuses.
func (r *CheckRun) Tally() {
	if r == nil {
		return
	}
	counts := make(map[UrlStatus]int, len(r.Statuses))
	broken := 0
	for _, status := range r.Statuses {
		counts[status]++
		if status.NeedsAttention() {
			broken++
		}
	}
	r.Counts = counts
	r.Total = len(r.Statuses)
	r.Broken = broken
}

// AuditRun is the persisted summary of one full tree audit.
type AuditRun struct {
	ID            string    `json:"id"`
	Root          string    `json:"root"`
	Style         string    `json:"style"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	PackagesTotal int       `json:"packages_total"`
	URLsTotal     int       `json:"urls_total"`
	URLsBroken    int       `json:"urls_broken"`
	Mismatches    int       `json:"mismatches"`
}
