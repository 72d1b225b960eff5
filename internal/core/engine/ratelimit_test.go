package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speclens/speclens/internal/core"
)

type memoryRateStore struct {
	state map[string]*core.RateLimitState
}

func (m *memoryRateStore) GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	if m.state == nil {
		return nil, nil
	}
	if val, ok := m.state[endpoint]; ok {
		return val, nil
	}
	return nil, nil
}

func (m *memoryRateStore) UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error {
	if m.state == nil {
		m.state = make(map[string]*core.RateLimitState)
	}
	m.state[endpoint] = state
	return nil
}

func TestRateLimiterWindow(t *testing.T) {
	store := &memoryRateStore{}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: store,
		Limits: map[string]RateLimit{
			"pkgsubmit.mageia.org": {RequestsPerWindow: 1, WindowDuration: time.Minute},
		},
		Clock: func() time.Time { return clock },
	}

	allowed, _, err := limiter.Allow(context.Background(), "pkgsubmit.mageia.org")
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, limiter.Record(context.Background(), "pkgsubmit.mageia.org"))

	allowed, wait, err := limiter.Allow(context.Background(), "pkgsubmit.mageia.org")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, time.Minute, wait)
}

func TestRateLimiterWindowReset(t *testing.T) {
	store := &memoryRateStore{}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: store,
		Limits: map[string]RateLimit{
			"rdap": {RequestsPerWindow: 1, WindowDuration: time.Minute},
		},
		Clock: func() time.Time { return clock },
	}

	require.NoError(t, limiter.Record(context.Background(), "rdap"))

	allowed, _, err := limiter.Allow(context.Background(), "rdap")
	require.NoError(t, err)
	require.False(t, allowed)

	clock = clock.Add(2 * time.Minute)
	allowed, _, err = limiter.Allow(context.Background(), "rdap")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRateLimiterBackoff(t *testing.T) {
	store := &memoryRateStore{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: store,
		Clock: func() time.Time { return now },
	}

	require.NoError(t, limiter.Record429(context.Background(), "rdap", 30*time.Second))

	allowed, wait, err := limiter.Allow(context.Background(), "rdap")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 30*time.Second, wait)
}

func TestRateLimiterSharedRDAPBucket(t *testing.T) {
	limiter := &RateLimiter{
		Store: &memoryRateStore{},
		Limits: map[string]RateLimit{
			"rdap": {RequestsPerWindow: 5, WindowDuration: time.Minute},
		},
	}

	limit := limiter.getLimit("rdap.verisign.com")
	require.Equal(t, 5, limit.RequestsPerWindow)

	// Hosts outside the rdap namespace get the generic default.
	limit = limiter.getLimit("ftp.gnome.org")
	require.Equal(t, 30, limit.RequestsPerWindow)
}

func TestRateLimiterOverrides(t *testing.T) {
	limiter := &RateLimiter{Store: &memoryRateStore{}}
	limiter.ApplyOverrides(map[string]int{
		"rdap":     10,
		"  ":       5,
		"negative": -1,
	})

	limit := limiter.getLimit("rdap")
	require.Equal(t, 10, limit.RequestsPerWindow)
	require.Equal(t, time.Minute, limit.WindowDuration)

	// Untouched defaults survive the override merge.
	limit = limiter.getLimit("pkgsubmit.mageia.org")
	require.Equal(t, 12, limit.RequestsPerWindow)
}

func TestRateLimiterMargin(t *testing.T) {
	store := &memoryRateStore{}
	limiter := &RateLimiter{
		Store: store,
		Limits: map[string]RateLimit{
			"rdap": {RequestsPerWindow: 10, WindowDuration: time.Minute},
		},
		Clock: func() time.Time { return time.Now().UTC() },
	}

	limiter.ApplySafetyMargin(0.9)
	limit := limiter.getLimit("rdap")
	require.Equal(t, 9, limit.RequestsPerWindow)
}
