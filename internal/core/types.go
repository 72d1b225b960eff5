package core

import (
	"regexp"
	"strings"
	"time"
)

// UrlUse identifies what a URL is used for in a spec file.
type UrlUse string

const (
	UseHomepage UrlUse = "homepage"
	UseSource   UrlUse = "source"
	UsePatch    UrlUse = "patch"
)

// Label returns the display name used in reports.
func (u UrlUse) Label() string {
	switch u {
	case UseHomepage:
		return "Homepage"
	case UseSource:
		return "Source"
	case UsePatch:
		return "Patch"
	default:
		return string(u)
	}
}

// UrlStatus classifies the outcome of checking one URL.
type UrlStatus string

const (
	StatusUnchecked      UrlStatus = "unchecked"
	StatusUnsupported    UrlStatus = "unsupported"
	StatusValid          UrlStatus = "valid"
	StatusRedirect       UrlStatus = "redirect"
	StatusBadHost        UrlStatus = "bad_host"
	StatusBadCertificate UrlStatus = "bad_certificate"
	StatusNotFound       UrlStatus = "not_found"
	StatusAuthenticate   UrlStatus = "authenticate"
	StatusTimeout        UrlStatus = "timeout"
	StatusTemporaryErr   UrlStatus = "temporary_err"
)

// ParseStatus maps a status name to its UrlStatus. ok is false when
// the name does not match any known status.
func ParseStatus(name string) (UrlStatus, bool) {
	switch status := UrlStatus(strings.ToLower(strings.TrimSpace(name))); status {
	case StatusUnchecked, StatusUnsupported, StatusValid, StatusRedirect,
		StatusBadHost, StatusBadCertificate, StatusNotFound,
		StatusAuthenticate, StatusTimeout, StatusTemporaryErr:
		return status, true
	default:
		return "", false
	}
}

// Description returns the human-readable explanation used in reports.
func (s UrlStatus) Description() string {
	switch s {
	case StatusUnchecked:
		return "Unknown processing error"
	case StatusUnsupported:
		return "Unsupported URL"
	case StatusValid:
		return "Valid"
	case StatusRedirect:
		return "Redirected"
	case StatusBadHost:
		return "Host name does not exist"
	case StatusBadCertificate:
		return "TLS certificate problem"
	case StatusNotFound:
		return "File not found"
	case StatusAuthenticate:
		return "URL requires authentication"
	case StatusTimeout:
		return "Request timed out"
	case StatusTemporaryErr:
		return "Temporary server error"
	default:
		return string(s)
	}
}

// NeedsAttention reports whether the status belongs in the bad-URL
// section of a report. Everything except a confirmed-good URL does.
func (s UrlStatus) NeedsAttention() bool {
	return s != StatusValid
}

// UrlRecord ties a URL back to the package and field it came from.
// One record exists per distinct (package, use, url) triple; the
// checking pipeline only ever sees the bare URL and hands back a
// status map that the report joins against these records.
type UrlRecord struct {
	Package string    `json:"package"`
	Use     UrlUse    `json:"use"`
	URL     string    `json:"url"`
	Status  UrlStatus `json:"status"`
}

// Outcome holds the raw fields observed while probing one URL.
// It is only meaningful to the classifier and is never persisted.
type Outcome struct {
	// ResponseCode is the final HTTP or FTP reply code, 0 if none
	// was obtained.
	ResponseCode int

	// TLSVerifyResult is nonzero when certificate verification
	// failed. The value itself is transport-specific.
	TLSVerifyResult int

	ConnectTime     time.Duration
	TotalTime       time.Duration
	ConnectionCount int

	// HostNotFound is set when the transport observed a genuine
	// name-resolution failure. Probers that cannot see DNS errors
	// leave it false and the classifier falls back to inference.
	HostNotFound bool
}

// urlSchemeRE matches what looks like an actual URL.
var urlSchemeRE = regexp.MustCompile(`^([-+.a-zA-Z0-9]+)://`)

// SchemeOf extracts the lowercased scheme from a URL-looking string.
// ok is false when the string has no scheme:// prefix at all.
func SchemeOf(rawURL string) (scheme string, ok bool) {
	m := urlSchemeRE.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// SupportedScheme reports whether the checking pipeline can probe
// URLs of the given scheme. Anything else is filtered up front and
// marked unsupported without a network call.
func SupportedScheme(scheme string) bool {
	switch scheme {
	case "http", "https", "ftp", "ftps":
		return true
	default:
		return false
	}
}

// SecureScheme reports whether the scheme encrypts in transit.
// Reports flag the rest as insecure.
func SecureScheme(scheme string) bool {
	return scheme == "https" || scheme == "ftps"
}
