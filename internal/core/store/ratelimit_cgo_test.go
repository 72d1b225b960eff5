//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speclens/speclens/internal/core"
)

func TestRateLimitStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	got, err := store.GetRateLimit(ctx, "pkgsubmit.mageia.org")
	require.NoError(t, err)
	require.Nil(t, got)

	backoff := time.Date(2026, 3, 14, 9, 35, 0, 0, time.UTC)
	last429 := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	state := &core.RateLimitState{
		RequestCount: 7,
		WindowStart:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		BackoffUntil: &backoff,
		Last429At:    &last429,
	}
	require.NoError(t, store.UpdateRateLimit(ctx, "pkgsubmit.mageia.org", state))

	got, err = store.GetRateLimit(ctx, "pkgsubmit.mageia.org")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, state.RequestCount, got.RequestCount)
	require.Equal(t, state.WindowStart, got.WindowStart)
	require.Equal(t, backoff, *got.BackoffUntil)
	require.Equal(t, last429, *got.Last429At)
}

func TestRateLimitAdminQueries(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	window := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for _, endpoint := range []string{"rdap.verisign.com", "rdap.nic.fr", "pkgsubmit.mageia.org"} {
		require.NoError(t, store.UpdateRateLimit(ctx, endpoint, &core.RateLimitState{
			RequestCount: 1,
			WindowStart:  window,
		}))
	}

	entries, err := store.ListRateLimits(ctx, RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "pkgsubmit.mageia.org", entries[0].Endpoint)

	entries, err = store.ListRateLimits(ctx, RateLimitQuery{Prefix: "rdap."})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	count, err := store.CountRateLimits(ctx, RateLimitQuery{Endpoint: "pkgsubmit.mageia.org"})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	affected, err := store.ResetRateLimits(ctx, RateLimitQuery{Prefix: "rdap."})
	require.NoError(t, err)
	require.EqualValues(t, 2, affected)

	count, err = store.CountRateLimits(ctx, RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRateLimitQueryValidate(t *testing.T) {
	require.Error(t, RateLimitQuery{}.Validate())
	require.NoError(t, RateLimitQuery{All: true}.Validate())
	require.NoError(t, RateLimitQuery{Endpoint: "pkgsubmit.mageia.org"}.Validate())
	require.NoError(t, RateLimitQuery{Prefix: "rdap."}.Validate())
}
