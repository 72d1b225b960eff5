package check

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
	"github.com/speclens/speclens/internal/core/probe"
)

// Probe deadlines. The no-redirect deadline sits just below the 7.6s
// after which SourceForge silently drops connections; anything longer
// makes a slow-but-alive SourceForge URL indistinguishable from a
// dead host. Following redirects multiplies the round trips, so that
// deadline is far more generous.
const (
	DefaultTimeout         = 7 * time.Second
	DefaultTimeoutRedirect = 25 * time.Second
)

// Cache lifetimes per status family.
const (
	DefaultValidTTL  = 24 * time.Hour
	DefaultBrokenTTL = time.Hour
	DefaultErrorTTL  = 10 * time.Minute
)

// StatusCache persists resolved statuses between runs so repeated
// audits do not hammer the same hosts.
type StatusCache interface {
	GetStatuses(ctx context.Context, urls []string) (map[string]core.UrlStatus, error)
	PutStatus(ctx context.Context, rawURL string, status core.UrlStatus, expiresAt time.Time) error
}

// CachePolicy sets how long each family of resolved statuses stays
// trusted. Broken statuses expire faster than valid ones so fixed
// sites are noticed, and transient errors faster still.
type CachePolicy struct {
	ValidTTL  time.Duration
	BrokenTTL time.Duration
	ErrorTTL  time.Duration
}

func (p CachePolicy) withDefaults() CachePolicy {
	if p.ValidTTL <= 0 {
		p.ValidTTL = DefaultValidTTL
	}
	if p.BrokenTTL <= 0 {
		p.BrokenTTL = DefaultBrokenTTL
	}
	if p.ErrorTTL <= 0 {
		p.ErrorTTL = DefaultErrorTTL
	}
	return p
}

func (p CachePolicy) ttl(status core.UrlStatus) time.Duration {
	switch status {
	case core.StatusValid:
		return p.ValidTTL
	case core.StatusTimeout, core.StatusTemporaryErr:
		return p.ErrorTTL
	default:
		return p.BrokenTTL
	}
}

// cacheable reports whether a status is a settled probe result worth
// remembering. UNCHECKED and UNSUPPORTED do not come from probing at
// all and would poison later runs.
func cacheable(status core.UrlStatus) bool {
	switch status {
	case core.StatusUnchecked, core.StatusUnsupported:
		return false
	default:
		return true
	}
}

// Checker drives the full checking pipeline: scheme filtering, cache
// lookup, the batched initial pass and the redirect and
// temporary-error rechecks, then cache write-back. The zero value
// needs at least a Prober; everything else has working defaults.
type Checker struct {
	Prober probe.Prober

	Policy          BatchPolicy
	Timeout         time.Duration
	TimeoutRedirect time.Duration

	// SkipCheck leaves every supported URL UNCHECKED. Scanning and
	// reporting still run, which is what CI wants when the network is
	// unavailable or deliberately off limits.
	SkipCheck bool

	Cache       StatusCache
	UseCache    bool
	CachePolicy CachePolicy

	// Overrides settle matching URLs before any probing; see the
	// Overrides type for semantics. Nil means no exceptions.
	Overrides *Overrides

	Logger core.Logger

	// Clock is overridable for tests; nil means time.Now.
	Clock func() time.Time
}

func (c *Checker) policy() BatchPolicy {
	return c.Policy.withDefaults()
}

func (c *Checker) classifier() *Classifier {
	return &Classifier{Logger: c.Logger}
}

func (c *Checker) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Checker) probeOptions(followRedirects bool) probe.Options {
	opts := probe.Options{FollowRedirects: followRedirects, Deadline: c.Timeout}
	if followRedirects {
		opts.Deadline = c.TimeoutRedirect
		if opts.Deadline <= 0 {
			opts.Deadline = DefaultTimeoutRedirect
		}
		return opts
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultTimeout
	}
	return opts
}

// CheckURLs checks every distinct URL in urls and returns a run whose
// status map holds exactly one entry per distinct input URL. On error
// the run still carries whatever statuses were settled before the
// failure.
func (c *Checker) CheckURLs(ctx context.Context, urls []string) (*core.CheckRun, error) {
	logger := core.LoggerOrNop(c.Logger)

	run := &core.CheckRun{
		ID:        uuid.NewString(),
		StartedAt: c.now(),
		Statuses:  make(map[string]core.UrlStatus, len(urls)),
	}

	// Scheme gate. Anything the probers cannot speak is settled here
	// as UNSUPPORTED and never reaches the network. Overridden URLs
	// settle here too and skip the cache both ways.
	supported := make(map[string]struct{}, len(urls))
	for _, rawURL := range urls {
		if _, seen := run.Statuses[rawURL]; seen {
			continue
		}
		if c.Overrides.Ignored(rawURL) {
			logger.Info("URL ignored by override", zap.String("url", rawURL))
			run.Statuses[rawURL] = core.StatusUnchecked
			continue
		}
		if status, ok := c.Overrides.Pinned(rawURL); ok {
			logger.Info("URL status pinned by override",
				zap.String("url", rawURL), zap.String("status", string(status)))
			run.Statuses[rawURL] = status
			continue
		}
		scheme, ok := core.SchemeOf(rawURL)
		if !ok {
			logger.Warn("not a valid URL; skipping", zap.String("url", rawURL))
			run.Statuses[rawURL] = core.StatusUnsupported
			continue
		}
		if !core.SupportedScheme(scheme) {
			logger.Warn("unsupported URL scheme; skipping",
				zap.String("scheme", scheme), zap.String("url", rawURL))
			run.Statuses[rawURL] = core.StatusUnsupported
			continue
		}
		run.Statuses[rawURL] = core.StatusUnchecked
		supported[rawURL] = struct{}{}
	}

	if c.SkipCheck {
		logger.Info("skipping checking of URLs", zap.Int("urls", len(supported)))
		return c.finishRun(run), nil
	}

	if c.UseCache && c.Cache != nil && len(supported) > 0 {
		c.applyCached(ctx, run, supported)
	}

	candidates := make([]string, 0, len(supported))
	for rawURL := range supported {
		candidates = append(candidates, rawURL)
	}
	if len(candidates) == 0 {
		return c.finishRun(run), nil
	}

	logger.Info("starting checking URLs", zap.Int("urls", len(candidates)))
	statuses, err := c.runPasses(ctx, candidates, run)
	for rawURL, status := range statuses {
		run.Statuses[rawURL] = status
	}
	if err != nil {
		return c.finishRun(run), err
	}

	if c.UseCache && c.Cache != nil {
		c.storeCached(ctx, statuses)
	}
	return c.finishRun(run), nil
}

// applyCached settles URLs with a fresh cached status and removes
// them from the candidate set. A cache failure is logged and checking
// proceeds as if the cache were empty.
func (c *Checker) applyCached(ctx context.Context, run *core.CheckRun, supported map[string]struct{}) {
	logger := core.LoggerOrNop(c.Logger)

	lookup := make([]string, 0, len(supported))
	for rawURL := range supported {
		lookup = append(lookup, rawURL)
	}
	cached, err := c.Cache.GetStatuses(ctx, lookup)
	if err != nil {
		logger.Warn("status cache lookup failed", zap.Error(err))
		return
	}
	for rawURL, status := range cached {
		if _, ok := supported[rawURL]; !ok {
			continue
		}
		run.Statuses[rawURL] = status
		delete(supported, rawURL)
		run.FromCache++
	}
	if run.FromCache > 0 {
		logger.Info("reusing cached URL statuses", zap.Int("urls", run.FromCache))
	}
}

func (c *Checker) storeCached(ctx context.Context, statuses map[string]core.UrlStatus) {
	logger := core.LoggerOrNop(c.Logger)

	policy := c.CachePolicy.withDefaults()
	now := c.now()
	for rawURL, status := range statuses {
		if !cacheable(status) {
			continue
		}
		if err := c.Cache.PutStatus(ctx, rawURL, status, now.Add(policy.ttl(status))); err != nil {
			logger.Warn("cannot cache URL status", zap.String("url", rawURL), zap.Error(err))
			return
		}
	}
}

func (c *Checker) finishRun(run *core.CheckRun) *core.CheckRun {
	run.FinishedAt = c.now()
	run.Tally()
	return run
}
