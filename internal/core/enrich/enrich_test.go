package enrich

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/openrdap/rdap"
	"github.com/stretchr/testify/require"

	"github.com/speclens/speclens/internal/core"
)

type stubQuerier struct {
	mu        sync.Mutex
	asked     []string
	responses map[string]*rdap.Response
	errs      map[string]error
}

func (q *stubQuerier) Do(req *rdap.Request) (*rdap.Response, error) {
	q.mu.Lock()
	q.asked = append(q.asked, req.Query)
	q.mu.Unlock()
	return q.responses[req.Query], q.errs[req.Query]
}

type stubLimiter struct {
	allowed    bool
	recorded   int
	got429     int
	retryAfter time.Duration
}

func (l *stubLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return l.allowed, time.Minute, nil
}

func (l *stubLimiter) Record(context.Context, string) error {
	l.recorded++
	return nil
}

func (l *stubLimiter) Record429(_ context.Context, _ string, retryAfter time.Duration) error {
	l.got429++
	l.retryAfter = retryAfter
	return nil
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		rawURL string
		domain string
		ok     bool
	}{
		{"https://downloads.example.co.uk/path/file.tar.gz", "example.co.uk", true},
		{"http://ftp.gnome.org/pub/GNOME/", "gnome.org", true},
		{"https://gnome.org", "gnome.org", true},
		{"http://192.0.2.7/tarballs/", "", false},
		{"file:///usr/share/doc", "", false},
		{"http://", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.rawURL, func(t *testing.T) {
			domain, ok := DomainOf(tt.rawURL)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.domain, domain)
		})
	}
}

func registeredResponse(status []string, expires string) *rdap.Response {
	domain := &rdap.Domain{Status: status}
	if expires != "" {
		domain.Events = []rdap.Event{{Action: "expiration", Date: expires}}
	}
	return &rdap.Response{Object: domain}
}

func TestAnnotateBadHostsRegistered(t *testing.T) {
	querier := &stubQuerier{responses: map[string]*rdap.Response{
		"example.org": registeredResponse([]string{"active"}, "2027-06-01T00:00:00Z"),
	}}
	e := &Enricher{Client: querier}

	statuses := map[string]core.UrlStatus{
		"http://www.example.org/project/": core.StatusBadHost,
	}
	annotations := e.AnnotateBadHosts(context.Background(), statuses)

	require.Len(t, annotations, 1)
	annotation := annotations["example.org"]
	require.True(t, annotation.Registered)
	require.Equal(t, []string{"active"}, annotation.Status)
	require.Equal(t, "2027-06-01T00:00:00Z", annotation.Expires)
	require.Contains(t, annotation.Note, "expires 2027-06-01")
}

func TestAnnotateBadHostsNotRegistered(t *testing.T) {
	querier := &stubQuerier{errs: map[string]error{
		"vanished.example": &rdap.ClientError{Type: rdap.ObjectDoesNotExist, Text: "not found"},
	}}
	e := &Enricher{Client: querier}

	statuses := map[string]core.UrlStatus{
		"http://downloads.vanished.example/files/": core.StatusBadHost,
	}
	annotations := e.AnnotateBadHosts(context.Background(), statuses)

	require.Len(t, annotations, 1)
	annotation := annotations["vanished.example"]
	require.False(t, annotation.Registered)
	require.Equal(t, "domain is not registered", annotation.Note)
}

func TestAnnotateBadHostsDedupesDomains(t *testing.T) {
	querier := &stubQuerier{responses: map[string]*rdap.Response{
		"example.org": registeredResponse(nil, ""),
	}}
	e := &Enricher{Client: querier}

	statuses := map[string]core.UrlStatus{
		"http://dead.example.org/a":      core.StatusBadHost,
		"http://dead.example.org/b":      core.StatusBadHost,
		"http://also-dead.example.org/c": core.StatusBadHost,
		"https://fine.example.net/":      core.StatusValid,
		"http://192.0.2.7/x":             core.StatusBadHost,
	}
	annotations := e.AnnotateBadHosts(context.Background(), statuses)

	require.Equal(t, []string{"example.org"}, querier.asked)
	require.Len(t, annotations, 1)

	// The status map itself stays untouched.
	require.Equal(t, core.StatusValid, statuses["https://fine.example.net/"])
	require.Equal(t, core.StatusBadHost, statuses["http://dead.example.org/a"])
}

func TestAnnotateBadHostsNothingToDo(t *testing.T) {
	querier := &stubQuerier{}
	e := &Enricher{Client: querier}

	annotations := e.AnnotateBadHosts(context.Background(), map[string]core.UrlStatus{
		"https://fine.example.net/": core.StatusValid,
		"gopher://old.example/":     core.StatusUnsupported,
	})
	require.Nil(t, annotations)
	require.Empty(t, querier.asked)
}

func TestAnnotateBadHostsLookupFailure(t *testing.T) {
	querier := &stubQuerier{errs: map[string]error{
		"example.org": fmt.Errorf("connect: network unreachable"),
	}}
	e := &Enricher{Client: querier}

	annotations := e.AnnotateBadHosts(context.Background(), map[string]core.UrlStatus{
		"http://dead.example.org/": core.StatusBadHost,
	})
	require.Empty(t, annotations)
}

func TestAnnotateBadHostsRateLimited(t *testing.T) {
	querier := &stubQuerier{}
	limiter := &stubLimiter{allowed: false}
	e := &Enricher{Client: querier, Limiter: limiter}

	annotations := e.AnnotateBadHosts(context.Background(), map[string]core.UrlStatus{
		"http://dead.example.org/": core.StatusBadHost,
	})
	require.Empty(t, annotations)
	require.Empty(t, querier.asked)
	require.Zero(t, limiter.recorded)
}

func TestAnnotateBadHostsServer429(t *testing.T) {
	resp := &rdap.Response{HTTP: []*rdap.HTTPResponse{{
		Response: &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Header:     http.Header{"Retry-After": []string{"60"}},
		},
	}}}
	querier := &stubQuerier{
		responses: map[string]*rdap.Response{"example.org": resp},
		errs:      map[string]error{"example.org": fmt.Errorf("too many requests")},
	}
	limiter := &stubLimiter{allowed: true}
	e := &Enricher{Client: querier, Limiter: limiter}

	annotations := e.AnnotateBadHosts(context.Background(), map[string]core.UrlStatus{
		"http://dead.example.org/": core.StatusBadHost,
	})
	require.Empty(t, annotations)
	require.Equal(t, 1, limiter.got429)
	require.Equal(t, time.Minute, limiter.retryAfter)
	require.Equal(t, 1, limiter.recorded)
}
