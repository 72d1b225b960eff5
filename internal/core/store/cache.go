package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/speclens/speclens/internal/core"
)

// queryChunkSize keeps IN (...) clauses under the SQLite parameter limit.
const queryChunkSize = 500

// GetStatuses returns the unexpired cached statuses for the given URLs.
// URLs without a live cache entry are simply absent from the result.
func (s *Store) GetStatuses(ctx context.Context, urls []string) (map[string]core.UrlStatus, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	statuses := make(map[string]core.UrlStatus, len(urls))
	now := time.Now().UTC().Unix()

	for start := 0; start < len(urls); start += queryChunkSize {
		end := start + queryChunkSize
		if end > len(urls) {
			end = len(urls)
		}
		chunk := urls[start:end]

		placeholders := strings.Repeat("?, ", len(chunk)-1) + "?"
		args := make([]any, 0, len(chunk)+1)
		for _, rawURL := range chunk {
			args = append(args, rawURL)
		}
		args = append(args, now)

		rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
			SELECT url, status
			FROM url_cache
			WHERE url IN (%s) AND expires_at > ?
		`, placeholders), args...)
		if err != nil {
			return nil, fmt.Errorf("fetch cached statuses: %w", err)
		}

		for rows.Next() {
			var (
				rawURL string
				status string
			)
			if err := rows.Scan(&rawURL, &status); err != nil {
				rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows
				return nil, fmt.Errorf("scan cached status: %w", err)
			}
			statuses[rawURL] = core.UrlStatus(status)
		}
		if err := rows.Err(); err != nil {
			rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows
			return nil, fmt.Errorf("fetch cached statuses: %w", err)
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("fetch cached statuses: %w", err)
		}
	}

	return statuses, nil
}

// PutStatus stores one checked status until the given expiry.
func (s *Store) PutStatus(ctx context.Context, rawURL string, status core.UrlStatus, expiresAt time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return errors.New("cache url is required")
	}

	now := time.Now().UTC()

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO url_cache (url, status, checked_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			status = excluded.status,
			checked_at = excluded.checked_at,
			expires_at = excluded.expires_at
	`, rawURL, string(status), now.Unix(), expiresAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store cached status: %w", err)
	}

	return nil
}

// PruneExpired removes cache entries whose expiry has passed and
// reports how many were dropped.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM url_cache WHERE expires_at <= ?
	`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune cached statuses: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune cached statuses: %w", err)
	}
	return pruned, nil
}

// CountCached reports how many cache entries exist and how many of
// them are still live.
func (s *Store) CountCached(ctx context.Context) (total int64, live int64, err error) {
	if s == nil || s.DB == nil {
		return 0, 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0)
		FROM url_cache
	`, time.Now().UTC().Unix())
	if err := row.Scan(&total, &live); err != nil {
		return 0, 0, fmt.Errorf("count cached statuses: %w", err)
	}

	return total, live, nil
}
