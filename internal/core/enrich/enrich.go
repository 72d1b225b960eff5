// Package enrich annotates dead hosts with domain registration data.
// A URL whose host no longer resolves is broken either way, but
// whether the domain behind it is still registered separates a moved
// project from a vanished one, and an unregistered domain in a spec
// file is a takeover risk worth surfacing.
package enrich

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/openrdap/rdap"
	"github.com/weppos/publicsuffix-go/publicsuffix"
	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
)

// rdapEndpoint is the rate limiter bucket shared by bootstrapped RDAP
// lookups, which fan out to per-registry servers we cannot enumerate
// up front.
const rdapEndpoint = "rdap"

// Annotation is what registration data reveals about one domain.
type Annotation struct {
	Domain     string   `json:"domain"`
	Registered bool     `json:"registered"`
	Status     []string `json:"status,omitempty"`
	Registrar  string   `json:"registrar,omitempty"`
	Expires    string   `json:"expires,omitempty"`
	Note       string   `json:"note"`
}

// Querier issues RDAP requests. *rdap.Client satisfies it.
type Querier interface {
	Do(req *rdap.Request) (*rdap.Response, error)
}

// Limiter is the rate limiter surface the enricher needs.
type Limiter interface {
	Allow(ctx context.Context, endpoint string) (bool, time.Duration, error)
	Record(ctx context.Context, endpoint string) error
	Record429(ctx context.Context, endpoint string, retryAfter time.Duration) error
}

// Enricher looks up registration data for broken domains.
type Enricher struct {
	Client  Querier // nil uses a bootstrapped rdap.Client
	Limiter Limiter // nil disables rate limiting
	Timeout time.Duration
	Logger  core.Logger
}

func (e *Enricher) client() Querier {
	if e.Client != nil {
		return e.Client
	}
	return &rdap.Client{}
}

// DomainOf extracts the registrable domain behind a URL, the unit
// registration applies to. ok is false for URLs without a usable
// host, IP literals included.
func DomainOf(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := parsed.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return "", false
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return "", false
	}
	return domain, true
}

// AnnotateBadHosts queries registration data for every registrable
// domain behind a URL whose host failed to resolve. The returned map
// is keyed by domain;
// the status map is never modified, since a probe verdict and a
// registry verdict are different facts. Lookup failures drop the
// domain from the result rather than failing the run.
func (e *Enricher) AnnotateBadHosts(ctx context.Context, statuses map[string]core.UrlStatus) map[string]Annotation {
	logger := core.LoggerOrNop(e.Logger)

	seen := make(map[string]struct{})
	var domains []string
	for rawURL, status := range statuses {
		if status != core.StatusBadHost {
			continue
		}
		domain, ok := DomainOf(rawURL)
		if !ok {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		domains = append(domains, domain)
	}
	if len(domains) == 0 {
		return nil
	}
	sort.Strings(domains)
	logger.Info("looking up registration for dead hosts", zap.Int("domains", len(domains)))

	annotations := make(map[string]Annotation, len(domains))
	for _, domain := range domains {
		if ctx.Err() != nil {
			break
		}
		if annotation, ok := e.annotate(ctx, domain); ok {
			annotations[domain] = annotation
		}
	}
	return annotations
}

func (e *Enricher) annotate(ctx context.Context, domain string) (Annotation, bool) {
	logger := core.LoggerOrNop(e.Logger)

	if e.Limiter != nil {
		allowed, wait, err := e.Limiter.Allow(ctx, rdapEndpoint)
		if err != nil {
			logger.Warn("rate limit check failed", zap.Error(err))
		}
		if !allowed {
			logger.Info("rdap lookup rate limited",
				zap.String("domain", domain), zap.Duration("retry_in", wait))
			return Annotation{}, false
		}
	}

	req := rdap.NewDomainRequest(domain)
	if e.Timeout > 0 {
		req.Timeout = e.Timeout
	}
	req = req.WithContext(ctx)

	if e.Limiter != nil {
		_ = e.Limiter.Record(ctx, rdapEndpoint)
	}

	resp, err := e.client().Do(req)
	if err != nil {
		if isNotFound(err) {
			return Annotation{
				Domain: domain,
				Note:   "domain is not registered",
			}, true
		}
		if code, retry := responseRetry(resp); code == 429 {
			if e.Limiter != nil && retry > 0 {
				_ = e.Limiter.Record429(ctx, rdapEndpoint, retry)
			}
			logger.Warn("rdap lookup rate limited by server", zap.String("domain", domain))
			return Annotation{}, false
		}
		logger.Warn("rdap lookup failed", zap.String("domain", domain), zap.Error(err))
		return Annotation{}, false
	}

	rdapDomain, ok := resp.Object.(*rdap.Domain)
	if !ok {
		logger.Warn("unexpected rdap response", zap.String("domain", domain))
		return Annotation{}, false
	}

	annotation := Annotation{
		Domain:     domain,
		Registered: true,
		Status:     rdapDomain.Status,
		Registrar:  findRegistrar(rdapDomain),
		Expires:    findEventDate(rdapDomain.Events, "expiration"),
	}
	if annotation.Expires != "" {
		annotation.Note = fmt.Sprintf("domain is registered, expires %s", annotation.Expires)
	} else {
		annotation.Note = "domain is registered"
	}
	return annotation, true
}

func isNotFound(err error) bool {
	clientErr, ok := err.(*rdap.ClientError)
	if !ok {
		return false
	}
	return clientErr.Type == rdap.ObjectDoesNotExist
}

// responseRetry extracts the HTTP status and Retry-After hint from
// the last response of an RDAP exchange, if one happened at all.
func responseRetry(resp *rdap.Response) (int, time.Duration) {
	if resp == nil || len(resp.HTTP) == 0 || resp.HTTP[0] == nil || resp.HTTP[0].Response == nil {
		return 0, 0
	}
	hrr := resp.HTTP[0].Response

	retry := hrr.Header.Get("Retry-After")
	if retry == "" {
		return hrr.StatusCode, 0
	}
	if seconds, err := strconv.Atoi(retry); err == nil && seconds > 0 {
		return hrr.StatusCode, time.Duration(seconds) * time.Second
	}
	return hrr.StatusCode, 0
}

func findRegistrar(domain *rdap.Domain) string {
	for _, entity := range domain.Entities {
		for _, role := range entity.Roles {
			if role == "registrar" && entity.VCard != nil {
				return entity.VCard.Name()
			}
		}
	}
	return ""
}

func findEventDate(events []rdap.Event, action string) string {
	for _, event := range events {
		if event.Action == action {
			return event.Date
		}
	}
	return ""
}
