package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/speclens/speclens/internal/core"
)

const defaultRunListLimit = 20

// SaveCheckRun persists the aggregate result of one URL checking run.
// Saving the same run ID again replaces the stored record.
func (s *Store) SaveCheckRun(ctx context.Context, run *core.CheckRun) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if run == nil {
		return errors.New("check run is required")
	}
	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("check run id is required")
	}

	statuses := run.Statuses
	if statuses == nil {
		statuses = map[string]core.UrlStatus{}
	}
	payload, err := json.Marshal(statuses)
	if err != nil {
		return fmt.Errorf("encode check run: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO check_runs (id, started_at, finished_at, total, broken, from_cache, failed_batches, passes, statuses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			total = excluded.total,
			broken = excluded.broken,
			from_cache = excluded.from_cache,
			failed_batches = excluded.failed_batches,
			passes = excluded.passes,
			statuses = excluded.statuses
	`, id, run.StartedAt.UTC().Unix(), run.FinishedAt.UTC().Unix(), run.Total, run.Broken, run.FromCache, run.FailedBatches, run.Passes, string(payload))
	if err != nil {
		return fmt.Errorf("store check run: %w", err)
	}

	return nil
}

// GetCheckRun returns a stored run with its full per-URL statuses,
// or nil when no run has that ID.
func (s *Store) GetCheckRun(ctx context.Context, id string) (*core.CheckRun, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("check run id is required")
	}

	var (
		startedAt     int64
		finishedAt    int64
		fromCache     int
		failedBatches int
		passes        int
		statusJSON    string
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT started_at, finished_at, from_cache, failed_batches, passes, statuses
		FROM check_runs
		WHERE id = ?
	`, id)

	if err := row.Scan(&startedAt, &finishedAt, &fromCache, &failedBatches, &passes, &statusJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch check run: %w", err)
	}

	statuses := map[string]core.UrlStatus{}
	if statusJSON != "" {
		if err := json.Unmarshal([]byte(statusJSON), &statuses); err != nil {
			return nil, fmt.Errorf("decode check run: %w", err)
		}
	}

	run := &core.CheckRun{
		ID:            id,
		StartedAt:     time.Unix(startedAt, 0).UTC(),
		FinishedAt:    time.Unix(finishedAt, 0).UTC(),
		Statuses:      statuses,
		FromCache:     fromCache,
		FailedBatches: failedBatches,
		Passes:        passes,
	}
	run.Tally()

	return run, nil
}

// ListCheckRuns returns the most recent runs, newest first. The
// per-URL statuses are left out; use GetCheckRun for the full record.
func (s *Store) ListCheckRuns(ctx context.Context, limit int) ([]core.CheckRun, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if limit <= 0 {
		limit = defaultRunListLimit
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, started_at, finished_at, total, broken, from_cache, failed_batches, passes
		FROM check_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list check runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var runs []core.CheckRun
	for rows.Next() {
		var (
			run        core.CheckRun
			startedAt  int64
			finishedAt int64
		)
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Total, &run.Broken, &run.FromCache, &run.FailedBatches, &run.Passes); err != nil {
			return nil, fmt.Errorf("list check runs: %w", err)
		}
		run.StartedAt = time.Unix(startedAt, 0).UTC()
		run.FinishedAt = time.Unix(finishedAt, 0).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list check runs: %w", err)
	}

	return runs, nil
}

// CountRuns reports how many check and audit runs the store holds.
func (s *Store) CountRuns(ctx context.Context) (checkRuns int64, auditRuns int64, err error) {
	if s == nil || s.DB == nil {
		return 0, 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM check_runs`)
	if err := row.Scan(&checkRuns); err != nil {
		return 0, 0, fmt.Errorf("count check runs: %w", err)
	}

	row = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_runs`)
	if err := row.Scan(&auditRuns); err != nil {
		return 0, 0, fmt.Errorf("count audit runs: %w", err)
	}

	return checkRuns, auditRuns, nil
}

// SaveAuditRun persists the summary of one full tree audit.
func (s *Store) SaveAuditRun(ctx context.Context, run *core.AuditRun) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if run == nil {
		return errors.New("audit run is required")
	}
	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("audit run id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO audit_runs (id, root, style, started_at, finished_at, packages, urls_total, urls_broken, mismatches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			root = excluded.root,
			style = excluded.style,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			packages = excluded.packages,
			urls_total = excluded.urls_total,
			urls_broken = excluded.urls_broken,
			mismatches = excluded.mismatches
	`, id, run.Root, run.Style, run.StartedAt.UTC().Unix(), run.FinishedAt.UTC().Unix(), run.PackagesTotal, run.URLsTotal, run.URLsBroken, run.Mismatches)
	if err != nil {
		return fmt.Errorf("store audit run: %w", err)
	}

	return nil
}

// GetAuditRun returns a stored audit summary, or nil when no audit
// has that ID.
func (s *Store) GetAuditRun(ctx context.Context, id string) (*core.AuditRun, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("audit run id is required")
	}

	var (
		run        core.AuditRun
		startedAt  int64
		finishedAt int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT id, root, style, started_at, finished_at, packages, urls_total, urls_broken, mismatches
		FROM audit_runs
		WHERE id = ?
	`, id)

	if err := row.Scan(&run.ID, &run.Root, &run.Style, &startedAt, &finishedAt, &run.PackagesTotal, &run.URLsTotal, &run.URLsBroken, &run.Mismatches); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch audit run: %w", err)
	}
	run.StartedAt = time.Unix(startedAt, 0).UTC()
	run.FinishedAt = time.Unix(finishedAt, 0).UTC()

	return &run, nil
}

// ListAuditRuns returns the most recent audit summaries, newest first.
func (s *Store) ListAuditRuns(ctx context.Context, limit int) ([]core.AuditRun, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if limit <= 0 {
		limit = defaultRunListLimit
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, root, style, started_at, finished_at, packages, urls_total, urls_broken, mismatches
		FROM audit_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var runs []core.AuditRun
	for rows.Next() {
		var (
			run        core.AuditRun
			startedAt  int64
			finishedAt int64
		)
		if err := rows.Scan(&run.ID, &run.Root, &run.Style, &startedAt, &finishedAt, &run.PackagesTotal, &run.URLsTotal, &run.URLsBroken, &run.Mismatches); err != nil {
			return nil, fmt.Errorf("list audit runs: %w", err)
		}
		run.StartedAt = time.Unix(startedAt, 0).UTC()
		run.FinishedAt = time.Unix(finishedAt, 0).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit runs: %w", err)
	}

	return runs, nil
}
