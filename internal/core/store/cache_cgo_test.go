//go:build cgo

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speclens/speclens/internal/core"
)

func TestURLCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	require.NoError(t, store.PutStatus(ctx, "https://curl.se/", core.StatusValid, future))
	require.NoError(t, store.PutStatus(ctx, "ftp://ftp.gnu.org/gnu/tar/", core.StatusNotFound, future))
	require.NoError(t, store.PutStatus(ctx, "https://stale.example.org/", core.StatusValid, past))

	statuses, err := store.GetStatuses(ctx, []string{
		"https://curl.se/",
		"ftp://ftp.gnu.org/gnu/tar/",
		"https://stale.example.org/",
		"https://never-checked.example.org/",
	})
	require.NoError(t, err)
	require.Equal(t, map[string]core.UrlStatus{
		"https://curl.se/":           core.StatusValid,
		"ftp://ftp.gnu.org/gnu/tar/": core.StatusNotFound,
	}, statuses)
}

func TestURLCacheUpsertReplacesStatus(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	future := time.Now().Add(time.Hour)

	require.NoError(t, store.PutStatus(ctx, "https://curl.se/", core.StatusTimeout, future))
	require.NoError(t, store.PutStatus(ctx, "https://curl.se/", core.StatusValid, future))

	statuses, err := store.GetStatuses(ctx, []string{"https://curl.se/"})
	require.NoError(t, err)
	require.Equal(t, core.StatusValid, statuses["https://curl.se/"])
}

func TestURLCacheNoURLs(t *testing.T) {
	store := openTestStore(t)

	statuses, err := store.GetStatuses(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, statuses)
}

func TestURLCacheChunkedLookup(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	future := time.Now().Add(time.Hour)
	urls := make([]string, 0, queryChunkSize+3)
	for i := 0; i < queryChunkSize+3; i++ {
		rawURL := fmt.Sprintf("https://example.org/pkg/p%04d", i)
		urls = append(urls, rawURL)
		require.NoError(t, store.PutStatus(ctx, rawURL, core.StatusValid, future))
	}

	statuses, err := store.GetStatuses(ctx, urls)
	require.NoError(t, err)
	require.Len(t, statuses, len(urls))
}

func TestURLCachePrune(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.PutStatus(ctx, "https://live.example.org/", core.StatusValid, time.Now().Add(time.Hour)))
	require.NoError(t, store.PutStatus(ctx, "https://stale.example.org/", core.StatusNotFound, time.Now().Add(-time.Hour)))

	total, live, err := store.CountCached(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.EqualValues(t, 1, live)

	pruned, err := store.PruneExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)

	total, live, err = store.CountCached(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.EqualValues(t, 1, live)
}
