package server

import (
	"context"

	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/config"
	"github.com/speclens/speclens/internal/core"
	"github.com/speclens/speclens/internal/core/check"
	"github.com/speclens/speclens/internal/core/probe"
	"github.com/speclens/speclens/internal/core/store"
	"github.com/speclens/speclens/internal/metrics"
)

// CheckService runs ad-hoc URL checks for the HTTP API. Every run is
// recorded in the store so it shows up under /api/v1/runs alongside
// CLI runs.
type CheckService struct {
	Config    *config.Config
	Store     *store.Store
	Overrides *check.Overrides
	Logger    core.Logger
}

// RunCheck checks the given URLs and persists the resulting run.
// useCache nil means the configured default; a non-nil value lets the
// caller force the cache on or off for this run.
func (s *CheckService) RunCheck(ctx context.Context, urls []string, useCache *bool) (*core.CheckRun, error) {
	logger := core.LoggerOrNop(s.Logger)
	cfg := s.Config

	prober, err := probe.New(cfg.Probe.Engine, cfg.Probe.CurlPath, logger)
	if err != nil {
		return nil, err
	}

	cacheEnabled := cfg.Check.UseCache
	if useCache != nil {
		cacheEnabled = *useCache
	}

	checker := &check.Checker{
		Prober: prober,
		Policy: check.BatchPolicy{
			TargetSize:    cfg.Check.BatchSize,
			MinSize:       cfg.Check.BatchSizeMin,
			Workers:       cfg.Check.Workers,
			SortThreshold: cfg.Check.SortThreshold,
		},
		Timeout:         cfg.Check.Timeout,
		TimeoutRedirect: cfg.Check.TimeoutRedirect,
		Cache:           s.Store,
		UseCache:        cacheEnabled,
		CachePolicy: check.CachePolicy{
			ValidTTL:  cfg.Cache.ValidTTL,
			BrokenTTL: cfg.Cache.BrokenTTL,
			ErrorTTL:  cfg.Cache.ErrorTTL,
		},
		Overrides: s.Overrides,
		Logger:    s.Logger,
	}

	run, checkErr := checker.CheckURLs(ctx, urls)
	metrics.RecordCheckRun(checkErr == nil)

	if run != nil {
		for status, count := range run.Counts {
			metrics.RecordURLsChecked(string(status), count)
		}
		metrics.RecordCacheHits(run.FromCache)
		metrics.RecordCheckBatches(0, run.FailedBatches)

		// Failed runs are saved too; their all-UNCHECKED statuses are
		// part of the history.
		if err := s.Store.SaveCheckRun(ctx, run); err != nil {
			logger.Warn("saving check run failed", zap.String("run", run.ID), zap.Error(err))
		}
	}

	return run, checkErr
}
