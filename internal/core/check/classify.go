// Package check implements the URL checking pipeline: filtering,
// batching, the parallel scheduler, outcome classification, and the
// multi-pass recheck driver.
package check

import (
	"time"

	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
)

// timeoutFraction of the deadline at which a probe is considered cut
// off mid-flight. A total time that close to the ceiling means the
// transfer was aborted and no other outcome field can be trusted.
const timeoutFraction = 0.99

// Classifier maps raw probe outcomes onto the status taxonomy.
// Classification itself is pure; anomalies are logged as a side
// channel and never guessed into a status.
type Classifier struct {
	Logger core.Logger
}

// Classify resolves one outcome. ok is false when the outcome could
// not be interpreted; the returned status is then the pipeline
// default rather than a determination.
func (c *Classifier) Classify(outcome core.Outcome, rawURL string, deadline time.Duration) (core.UrlStatus, bool) {
	logger := core.LoggerOrNop(c.loggerOrNil())

	if float64(outcome.TotalTime) >= timeoutFraction*float64(deadline) {
		return core.StatusTimeout, true
	}
	if outcome.TLSVerifyResult != 0 {
		return core.StatusBadCertificate, true
	}
	if outcome.ResponseCode == 0 {
		if outcome.HostNotFound {
			return core.StatusBadHost, true
		}
		if outcome.ConnectTime == 0 && outcome.ConnectionCount == 0 {
			// No connection was ever established; the best
			// available inference is a dead host.
			return core.StatusBadHost, true
		}
		logger.Error("unknown error reason", zap.String("url", rawURL))
		return core.StatusUnsupported, false
	}

	scheme, _ := core.SchemeOf(rawURL)
	switch scheme {
	case "http", "https":
		return c.classifyHTTP(outcome.ResponseCode, rawURL, logger)
	case "ftp", "ftps":
		return c.classifyFTP(outcome.ResponseCode, rawURL, logger)
	default:
		// Filtered before probing; seeing one here is a pipeline bug.
		logger.Error("unsupported scheme in classifier", zap.String("url", rawURL))
		return core.StatusUnsupported, false
	}
}

// classifyHTTP interprets a response code from the HTTP namespace.
func (c *Classifier) classifyHTTP(code int, rawURL string, logger core.Logger) (core.UrlStatus, bool) {
	switch {
	case code >= 200 && code < 300:
		return core.StatusValid, true
	case code == 423 || code == 429:
		// Rate limiting response.
		return core.StatusTemporaryErr, true
	case code == 401 || code == 402 || code == 403:
		return core.StatusAuthenticate, true
	case code >= 300 && code < 400:
		return core.StatusRedirect, true
	case code >= 400 && code < 500:
		return core.StatusNotFound, true
	case code >= 500 && code < 600:
		return core.StatusTemporaryErr, true
	}
	logger.Error("unknown HTTP error reason", zap.String("url", rawURL), zap.Int("code", code))
	return core.StatusUnsupported, false
}

// classifyFTP interprets a reply code from the FTP namespace, which
// is disjoint from HTTP's.
func (c *Classifier) classifyFTP(code int, rawURL string, logger core.Logger) (core.UrlStatus, bool) {
	switch {
	case code == 250 || code == 257 || code == 350:
		return core.StatusValid, true
	case code == 530 || code == 430:
		return core.StatusAuthenticate, true
	case code == 221 || code == 230:
		// Seen when the connection is terminated by timeout
		// before the transfer completes.
		return core.StatusTemporaryErr, true
	case code >= 400 && code < 500:
		return core.StatusTemporaryErr, true
	case code >= 500 && code < 600:
		return core.StatusNotFound, true
	}
	logger.Error("unknown FTP error reason", zap.String("url", rawURL), zap.Int("code", code))
	return core.StatusUnsupported, false
}

func (c *Classifier) loggerOrNil() core.Logger {
	if c == nil {
		return nil
	}
	return c.Logger
}
