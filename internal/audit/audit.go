// Package audit drives the full tree audit: spec scanning, the mirror
// version compare, URL checking, maintainer attribution and report
// assembly. The audit command and serve-mode scheduling both run it.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/config"
	"github.com/speclens/speclens/internal/core"
	"github.com/speclens/speclens/internal/core/check"
	"github.com/speclens/speclens/internal/core/engine"
	"github.com/speclens/speclens/internal/core/enrich"
	"github.com/speclens/speclens/internal/core/probe"
	"github.com/speclens/speclens/internal/core/store"
	"github.com/speclens/speclens/internal/maintainers"
	"github.com/speclens/speclens/internal/metrics"
	"github.com/speclens/speclens/internal/mirror"
	"github.com/speclens/speclens/internal/report"
	"github.com/speclens/speclens/internal/rpmname"
	"github.com/speclens/speclens/internal/spectree"
	"github.com/speclens/speclens/internal/versioncheck"
)

// Runner wires the audit pipeline from configuration. The store backs
// the status cache, the roster cache, rate limiter windows and the
// audit history.
type Runner struct {
	Config *config.Config
	Store  *store.Store
	Logger core.Logger

	// Release is the dist release stamped into spec stub queries,
	// "" means versioncheck.DefaultRelease.
	Release string

	// UseCache false bypasses the URL status cache for this run.
	UseCache bool

	// Clock is overridable for tests; nil means time.Now.
	Clock func() time.Time

	// Exec is handed to the spec scanner; nil runs the real rpm tools.
	Exec spectree.CommandRunner
}

// Outcome carries everything one audit produced. The run summary is
// persisted; the reports are handed back for rendering.
type Outcome struct {
	Run      *core.AuditRun
	URLs     *report.URLReport
	Versions *report.VersionReport
	CheckRun *core.CheckRun
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

// Run audits the checkout tree under root. The mirror catalog is
// built first so a dead mirror aborts before the expensive URL pass;
// a failed roster fetch only degrades maintainers to unknown.
func (r *Runner) Run(ctx context.Context, root, pattern string) (*Outcome, error) {
	logger := core.LoggerOrNop(r.Logger)
	cfg := r.Config
	if cfg == nil {
		return nil, errors.New("audit runner needs a config")
	}
	startedAt := r.now()

	parser := rpmname.New(cfg.Scan.DistTag)

	limiter := &engine.RateLimiter{Store: r.Store}
	limiter.ApplyOverrides(cfg.RateLimits)
	limiter.ApplySafetyMargin(cfg.RateLimitMargin)

	catalog, err := r.buildCatalog(ctx, parser)
	if err != nil {
		metrics.RecordAuditRun(false)
		return nil, err
	}

	scanner := &spectree.Scanner{
		RPMSpec:  cfg.Scan.RPMSpec,
		Spectool: cfg.Scan.Spectool,
		Workers:  cfg.Scan.Workers,
		Logger:   r.Logger,
		Exec:     r.Exec,
	}

	scanStarted := r.now()
	scan, err := scanner.Scan(ctx, root, pattern)
	metrics.RecordSpecScan(err == nil, r.now().Sub(scanStarted))
	if err != nil {
		metrics.RecordAuditRun(false)
		return nil, err
	}

	auditor := &versioncheck.Auditor{
		Specs:   scanner,
		Catalog: catalog,
		Parser:  parser,
		Release: r.Release,
		Workers: cfg.Scan.Workers,
		Logger:  r.Logger,
	}
	results, err := auditor.Audit(ctx, root, pattern)
	if err != nil {
		metrics.RecordAuditRun(false)
		return nil, err
	}

	checkRun, err := r.checkURLs(ctx, scan.Records)
	if err != nil {
		metrics.RecordAuditRun(false)
		return nil, err
	}
	if err := r.Store.SaveCheckRun(ctx, checkRun); err != nil {
		logger.Warn("saving check run failed", zap.String("run", checkRun.ID), zap.Error(err))
	}

	roster := r.fetchRoster(ctx, limiter)

	var annotations map[string]enrich.Annotation
	if cfg.Enrich.RDAP {
		enricher := &enrich.Enricher{Limiter: limiter, Logger: r.Logger}
		annotations = enricher.AnnotateBadHosts(ctx, checkRun.Statuses)
	}

	finishedAt := r.now()
	urls := report.AssembleURL(report.URLInput{
		Records:     scan.Records,
		Statuses:    checkRun.Statuses,
		Roster:      roster,
		Annotations: annotations,
		Version:     cfg.Mirror.Version,
		GeneratedAt: finishedAt,
	})
	versions := report.AssembleVersion(report.VersionInput{
		Results:     results,
		Roster:      roster,
		Parser:      parser,
		Version:     cfg.Mirror.Version,
		Release:     r.Release,
		GeneratedAt: finishedAt,
	})

	run := &core.AuditRun{
		ID:            uuid.NewString(),
		Root:          root,
		Style:         scan.Style.Label(),
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
		PackagesTotal: len(scan.Packages),
		URLsTotal:     urls.Total,
		URLsBroken:    urls.Bad,
		Mismatches:    versions.Summary.Mismatches,
	}
	if err := r.Store.SaveAuditRun(ctx, run); err != nil {
		logger.Warn("saving audit run failed", zap.String("run", run.ID), zap.Error(err))
	}
	metrics.RecordAuditRun(true)

	logger.Info("audit finished",
		zap.String("run", run.ID),
		zap.Int("packages", run.PackagesTotal),
		zap.Int("urls", run.URLsTotal),
		zap.Int("broken", run.URLsBroken),
		zap.Int("mismatches", run.Mismatches),
		zap.Duration("elapsed", finishedAt.Sub(startedAt)))

	return &Outcome{Run: run, URLs: urls, Versions: versions, CheckRun: checkRun}, nil
}

// RunVersions runs only the version half of the audit: mirror
// catalog, spec stub compare, maintainer attribution. Nothing is
// persisted beyond the roster cache.
func (r *Runner) RunVersions(ctx context.Context, root, pattern string) (*report.VersionReport, error) {
	cfg := r.Config
	if cfg == nil {
		return nil, errors.New("audit runner needs a config")
	}

	parser := rpmname.New(cfg.Scan.DistTag)

	limiter := &engine.RateLimiter{Store: r.Store}
	limiter.ApplyOverrides(cfg.RateLimits)
	limiter.ApplySafetyMargin(cfg.RateLimitMargin)

	catalog, err := r.buildCatalog(ctx, parser)
	if err != nil {
		return nil, err
	}

	scanner := &spectree.Scanner{
		RPMSpec:  cfg.Scan.RPMSpec,
		Spectool: cfg.Scan.Spectool,
		Workers:  cfg.Scan.Workers,
		Logger:   r.Logger,
		Exec:     r.Exec,
	}
	auditor := &versioncheck.Auditor{
		Specs:   scanner,
		Catalog: catalog,
		Parser:  parser,
		Release: r.Release,
		Workers: cfg.Scan.Workers,
		Logger:  r.Logger,
	}
	results, err := auditor.Audit(ctx, root, pattern)
	if err != nil {
		return nil, err
	}

	roster := r.fetchRoster(ctx, limiter)

	return report.AssembleVersion(report.VersionInput{
		Results:     results,
		Roster:      roster,
		Parser:      parser,
		Version:     cfg.Mirror.Version,
		Release:     r.Release,
		GeneratedAt: r.now(),
	}), nil
}

func (r *Runner) buildCatalog(ctx context.Context, parser *rpmname.Parser) (*versioncheck.Catalog, error) {
	cfg := r.Config

	lister := &mirror.Lister{
		Timeout: cfg.Mirror.FTPTimeout,
		Logger:  r.Logger,
	}
	src := versioncheck.Source{
		Template: cfg.Mirror.BaseURL,
		Version:  cfg.Mirror.Version,
		Section:  cfg.Mirror.Section,
		Medias:   cfg.Mirror.Medias,
	}

	scheme, _ := core.SchemeOf(cfg.Mirror.BaseURL)
	catalog, err := versioncheck.BuildCatalog(ctx, lister, src, parser, r.Logger)
	metrics.RecordMirrorFetch(scheme, err == nil)
	return catalog, err
}

func (r *Runner) checkURLs(ctx context.Context, records []core.UrlRecord) (*core.CheckRun, error) {
	cfg := r.Config

	prober, err := probe.New(cfg.Probe.Engine, cfg.Probe.CurlPath, r.Logger)
	if err != nil {
		return nil, err
	}
	overrides, err := check.LoadOverrides(cfg.OverridesFile)
	if err != nil {
		return nil, err
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
		SkipCheck:       cfg.Check.Skip,
		Cache:           r.Store,
		UseCache:        r.UseCache && cfg.Check.UseCache,
		CachePolicy: check.CachePolicy{
			ValidTTL:  cfg.Cache.ValidTTL,
			BrokenTTL: cfg.Cache.BrokenTTL,
			ErrorTTL:  cfg.Cache.ErrorTTL,
		},
		Overrides: overrides,
		Logger:    r.Logger,
		Clock:     r.Clock,
	}

	urls := distinctURLs(records)
	run, err := checker.CheckURLs(ctx, urls)
	if run != nil {
		for status, count := range run.Counts {
			metrics.RecordURLsChecked(string(status), count)
		}
		metrics.RecordCacheHits(run.FromCache)
		metrics.RecordCheckBatches(0, run.FailedBatches)
	}
	return run, err
}

// fetchRoster never fails the audit; a roster that cannot be fetched
// just means every maintainer shows as unknown.
func (r *Runner) fetchRoster(ctx context.Context, limiter *engine.RateLimiter) maintainers.Roster {
	logger := core.LoggerOrNop(r.Logger)
	cfg := r.Config

	fetcher := &maintainers.Fetcher{
		URL:     cfg.Maintainers.URL,
		Store:   r.Store,
		TTL:     cfg.Maintainers.TTL,
		Limiter: limiter,
		Logger:  r.Logger,
	}
	roster, err := fetcher.Roster(ctx)
	if err != nil {
		logger.Warn("maintainer roster unavailable", zap.Error(err))
		return maintainers.Roster{}
	}
	return roster
}

func distinctURLs(records []core.UrlRecord) []string {
	seen := make(map[string]struct{}, len(records))
	urls := make([]string, 0, len(records))
	for _, record := range records {
		if _, dup := seen[record.URL]; dup {
			continue
		}
		seen[record.URL] = struct{}{}
		urls = append(urls, record.URL)
	}
	return urls
}
