// Package maintainers resolves package maintainership from the
// distribution's package submission service. The roster is a plain
// text file of "package packager" pairs, fetched rarely and cached
// between runs so reports can be rebuilt without hammering the
// service.
package maintainers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
)

const (
	// DefaultURL serves one "package packager" pair per line.
	DefaultURL = "https://pkgsubmit.mageia.org/data/maintdb.txt"

	// Unknown is displayed when no maintainer is on record.
	Unknown = "?"

	// DefaultTTL bounds how long a cached roster counts as fresh.
	DefaultTTL = 12 * time.Hour
)

// Roster maps package names to their maintainer login.
type Roster map[string]string

// Packager returns the maintainer for a package, or Unknown when the
// roster has no usable entry.
func (r Roster) Packager(pkg string) string {
	if packager, ok := r[pkg]; ok && packager != "" {
		return packager
	}
	return Unknown
}

// RosterStore caches rosters between runs.
type RosterStore interface {
	GetRoster(ctx context.Context) (Roster, time.Time, error)
	PutRoster(ctx context.Context, roster Roster, fetchedAt time.Time) error
}

// Limiter is the rate limiter surface the fetcher needs.
type Limiter interface {
	Allow(ctx context.Context, endpoint string) (bool, time.Duration, error)
	Record(ctx context.Context, endpoint string) error
	Record429(ctx context.Context, endpoint string, retryAfter time.Duration) error
}

// Fetcher downloads and caches the maintainer roster.
type Fetcher struct {
	URL        string        // "" means DefaultURL
	HTTPClient *http.Client  // nil means http.DefaultClient
	Store      RosterStore   // nil disables caching
	TTL        time.Duration // 0 means DefaultTTL
	Limiter    Limiter       // nil disables rate limiting
	Logger     core.Logger
	Clock      func() time.Time // nil means time.Now
}

func (f *Fetcher) url() string {
	if f.URL != "" {
		return f.URL
	}
	return DefaultURL
}

func (f *Fetcher) ttl() time.Duration {
	if f.TTL > 0 {
		return f.TTL
	}
	return DefaultTTL
}

func (f *Fetcher) now() time.Time {
	if f.Clock != nil {
		return f.Clock()
	}
	return time.Now().UTC()
}

func (f *Fetcher) endpoint() string {
	if parsed, err := url.Parse(f.url()); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return f.url()
}

// Roster returns the maintainer roster. A fresh cache entry short
// circuits the fetch; fetch failures and rate limiting degrade to
// whatever stale roster the cache holds, or an empty roster, so the
// pipeline keeps running with maintainers shown as Unknown.
func (f *Fetcher) Roster(ctx context.Context) (Roster, error) {
	logger := core.LoggerOrNop(f.Logger)

	var stale Roster
	if f.Store != nil {
		cached, fetchedAt, err := f.Store.GetRoster(ctx)
		switch {
		case err != nil:
			logger.Warn("cannot read cached maintainer roster", zap.Error(err))
		case cached != nil:
			if f.now().Sub(fetchedAt) < f.ttl() {
				return cached, nil
			}
			stale = cached
		}
	}

	if f.Limiter != nil {
		allowed, wait, err := f.Limiter.Allow(ctx, f.endpoint())
		if err != nil {
			logger.Warn("rate limit check failed", zap.Error(err))
		}
		if !allowed {
			logger.Warn("maintainer roster fetch rate limited",
				zap.Duration("retry_in", wait))
			if stale != nil {
				return stale, nil
			}
			return Roster{}, nil
		}
	}

	roster, err := f.fetch(ctx)
	if err != nil {
		if stale != nil {
			logger.Warn("maintainer roster fetch failed; using stale cache", zap.Error(err))
			return stale, nil
		}
		return nil, err
	}
	logger.Info("fetched maintainer roster", zap.Int("packages", len(roster)))

	if f.Store != nil {
		if err := f.Store.PutRoster(ctx, roster, f.now()); err != nil {
			logger.Warn("cannot cache maintainer roster", zap.Error(err))
		}
	}
	return roster, nil
}

func (f *Fetcher) fetch(ctx context.Context) (Roster, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url(), nil)
	if err != nil {
		return nil, err
	}

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch maintainer roster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if f.Limiter != nil {
			_ = f.Limiter.Record429(ctx, f.endpoint(), retryAfter(resp, f.now()))
		}
		return nil, fmt.Errorf("fetch maintainer roster %s: status 429", f.url())
	}
	if f.Limiter != nil {
		_ = f.Limiter.Record(ctx, f.endpoint())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch maintainer roster %s: status %d", f.url(), resp.StatusCode)
	}

	return parseRoster(resp.Body, f.Logger)
}

// retryAfter reads a Retry-After header given either as seconds or as
// an HTTP date.
func retryAfter(resp *http.Response, now time.Time) time.Duration {
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(now); wait > 0 {
			return wait
		}
	}
	return 0
}

// parseRoster reads one "package packager" pair per line. Malformed
// lines are logged and skipped rather than failing the whole roster.
func parseRoster(r io.Reader, logger core.Logger) (Roster, error) {
	logger = core.LoggerOrNop(logger)

	roster := make(Roster)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			logger.Warn("invalid maintainer roster line", zap.String("line", line))
			continue
		}
		roster[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return roster, fmt.Errorf("read maintainer roster: %w", err)
	}
	return roster, nil
}
