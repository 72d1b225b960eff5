// Package probe issues liveness probes for batches of URLs and
// reports raw outcomes for the classifier. Implementations must not
// interpret outcomes; that belongs to the checking pipeline.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/speclens/speclens/internal/core"
)

// maxRedirects caps redirect chains when following is enabled.
const maxRedirects = 10

var errTooManyRedirects = errors.New("too many redirects")

// Options control how a batch of URLs is probed.
type Options struct {
	// FollowRedirects enables following HTTP redirect chains, up to
	// maxRedirects hops. Off for the fast first pass.
	FollowRedirects bool

	// Deadline is the hard wall-clock ceiling per URL. A probe must
	// return within it regardless of server behavior, including
	// servers that accept a connection and never respond.
	Deadline time.Duration
}

// Prober checks a batch of URLs sequentially over potentially-reused
// connections and reports one raw outcome per URL, keyed by the exact
// input URL string. A URL missing from the result map means the probe
// could not produce an outcome for it; the pipeline applies its
// default. A non-nil error means the batch mechanism itself failed;
// any outcomes returned alongside it are still valid.
type Prober interface {
	ProbeBatch(ctx context.Context, urls []string, opts Options) (map[string]core.Outcome, error)
}

// New returns the prober for the configured engine.
func New(engine, curlPath string, logger core.Logger) (Prober, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "native":
		return &NativeProber{Logger: logger}, nil
	case "curl":
		return &CurlProber{Path: curlPath, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown probe engine: %s", engine)
	}
}
