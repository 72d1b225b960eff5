package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/speclens/speclens/internal/maintainers"
)

const rosterFetchedAtKey = "roster_fetched_at"

// GetRoster returns the cached package-to-packager roster and when it
// was fetched. A store without a roster returns an empty roster and a
// zero time.
func (s *Store) GetRoster(ctx context.Context) (maintainers.Roster, time.Time, error) {
	if s == nil || s.DB == nil {
		return nil, time.Time{}, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	fetchedAt, err := s.rosterFetchedAt(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	if fetchedAt.IsZero() {
		return nil, time.Time{}, nil
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT package, packager FROM maintainer_roster`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("fetch roster: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	roster := maintainers.Roster{}
	for rows.Next() {
		var pkg, packager string
		if err := rows.Scan(&pkg, &packager); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan roster: %w", err)
		}
		roster[pkg] = packager
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("fetch roster: %w", err)
	}

	return roster, fetchedAt, nil
}

// PutRoster replaces the cached roster wholesale.
func (s *Store) PutRoster(ctx context.Context, roster maintainers.Roster, fetchedAt time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store roster: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM maintainer_roster`); err != nil {
		return fmt.Errorf("store roster: %w", err)
	}

	for pkg, packager := range roster {
		pkg = strings.TrimSpace(pkg)
		if pkg == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO maintainer_roster (package, packager)
			VALUES (?, ?)
		`, pkg, packager); err != nil {
			return fmt.Errorf("store roster: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO store_meta (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value
	`, rosterFetchedAtKey, strconv.FormatInt(fetchedAt.UTC().Unix(), 10)); err != nil {
		return fmt.Errorf("store roster: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store roster: %w", err)
	}

	return nil
}

// CountRoster returns the number of cached roster entries.
func (s *Store) CountRoster(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM maintainer_roster`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count roster: %w", err)
	}

	return count, nil
}

func (s *Store) rosterFetchedAt(ctx context.Context) (time.Time, error) {
	var value string
	if err := s.DB.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, rosterFetchedAtKey).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("fetch roster meta: %w", err)
	}

	seconds, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode roster meta: %w", err)
	}

	return time.Unix(seconds, 0).UTC(), nil
}
