package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
)

// NativeProber probes URLs in-process: HTTP and HTTPS over net/http
// with httptrace instrumentation, FTP and FTPS over an FTP client.
// One ProbeBatch invocation shares a transport so requests to the
// same host reuse the connection, mirroring what a batched external
// tool would do.
type NativeProber struct {
	Logger core.Logger
}

// ProbeBatch probes each URL in order. Unsupported schemes never
// reach here; the pipeline filters them first.
func (p *NativeProber) ProbeBatch(ctx context.Context, urls []string, opts Options) (map[string]core.Outcome, error) {
	logger := core.LoggerOrNop(p.Logger)
	logger.Debug("checking batch", zap.Int("urls", len(urls)))

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport:     transport,
		CheckRedirect: redirectPolicy(opts.FollowRedirects),
	}

	results := make(map[string]core.Outcome, len(urls))
	for _, rawURL := range urls {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var (
			outcome core.Outcome
			err     error
		)
		scheme, _ := core.SchemeOf(rawURL)
		switch scheme {
		case "http", "https":
			outcome, err = probeHTTP(ctx, client, rawURL, opts)
		case "ftp", "ftps":
			outcome, err = probeFTP(ctx, rawURL, opts, scheme == "ftps")
		default:
			err = errors.New("unsupported scheme reached prober")
		}
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			// Leave the URL out of the results; the pipeline
			// applies its default status.
			logger.Error("cannot probe URL", zap.String("url", rawURL), zap.Error(err))
			continue
		}
		results[rawURL] = outcome
	}
	return results, nil
}

func redirectPolicy(follow bool) func(*http.Request, []*http.Request) error {
	if !follow {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errTooManyRedirects
		}
		return nil
	}
}

// connTrace collects connection facts from httptrace callbacks, which
// may fire on transport goroutines.
type connTrace struct {
	mu           sync.Mutex
	start        time.Time
	connectTime  time.Duration
	connects     int
	hostNotFound bool
}

func probeHTTP(ctx context.Context, client *http.Client, rawURL string, opts Options) (core.Outcome, error) {
	reqCtx, cancel := context.WithTimeout(ctx, opts.Deadline)
	defer cancel()

	tr := &connTrace{start: time.Now()}
	trace := &httptrace.ClientTrace{
		ConnectDone: func(network, addr string, err error) {
			if err != nil {
				return
			}
			tr.mu.Lock()
			defer tr.mu.Unlock()
			tr.connects++
			if tr.connectTime == 0 {
				tr.connectTime = time.Since(tr.start)
			}
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			var dnsErr *net.DNSError
			if errors.As(info.Err, &dnsErr) && dnsErr.IsNotFound {
				tr.mu.Lock()
				tr.hostNotFound = true
				tr.mu.Unlock()
			}
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(reqCtx, trace), http.MethodHead, rawURL, nil)
	if err != nil {
		return core.Outcome{}, err
	}

	resp, doErr := client.Do(req)
	total := time.Since(tr.start)

	tr.mu.Lock()
	outcome := core.Outcome{
		ConnectTime:     tr.connectTime,
		TotalTime:       total,
		ConnectionCount: tr.connects,
		HostNotFound:    tr.hostNotFound,
	}
	tr.mu.Unlock()

	if doErr != nil {
		switch {
		case errors.Is(doErr, context.DeadlineExceeded):
			// The transfer was cut at the wall-clock ceiling; pin
			// the total so the timeout rule fires downstream.
			outcome.TotalTime = opts.Deadline
		case isCertificateError(doErr):
			outcome.TLSVerifyResult = 1
		case errors.Is(doErr, errTooManyRedirects):
			if resp != nil {
				outcome.ResponseCode = resp.StatusCode
			}
		default:
			var dnsErr *net.DNSError
			if errors.As(doErr, &dnsErr) && dnsErr.IsNotFound {
				outcome.HostNotFound = true
			}
			// Refused or reset connections keep a zero response
			// code with whatever counters were observed.
		}
		return outcome, nil
	}

	_ = resp.Body.Close()
	outcome.ResponseCode = resp.StatusCode
	return outcome, nil
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var authorityErr x509.UnknownAuthorityError
	if errors.As(err, &authorityErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &invalidErr)
}
