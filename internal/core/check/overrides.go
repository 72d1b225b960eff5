package check

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/speclens/speclens/internal/core"
)

// Overrides are operator-supplied exceptions to checking. Ignored
// URLs stay UNCHECKED without ever being probed, which keeps hosts
// that ban automated requests out of the bad-URL report. Pinned URLs
// settle at a fixed status, for results known to be wrong from the
// vantage point the audit runs on.
//
// Neither kind of override touches the status cache.
type Overrides struct {
	// Ignore lists URL prefixes. Any URL starting with one of them is
	// left UNCHECKED.
	Ignore []string `yaml:"ignore"`

	// Pin maps exact URLs to the status they report.
	Pin map[string]core.UrlStatus `yaml:"pin"`
}

// LoadOverrides reads and validates an overrides file. An empty path
// returns nil overrides, not an error.
func LoadOverrides(path string) (*Overrides, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides file: %w", err)
	}

	var overrides Overrides
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse overrides file %s: %w", path, err)
	}

	for rawURL, status := range overrides.Pin {
		parsed, ok := core.ParseStatus(string(status))
		if !ok {
			return nil, fmt.Errorf("overrides file %s: unknown status %q for %s", path, status, rawURL)
		}
		overrides.Pin[rawURL] = parsed
	}

	cleaned := overrides.Ignore[:0]
	for _, prefix := range overrides.Ignore {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		cleaned = append(cleaned, prefix)
	}
	overrides.Ignore = cleaned

	return &overrides, nil
}

// Ignored reports whether the URL matches an ignore prefix.
func (o *Overrides) Ignored(rawURL string) bool {
	if o == nil {
		return false
	}
	for _, prefix := range o.Ignore {
		if strings.HasPrefix(rawURL, prefix) {
			return true
		}
	}
	return false
}

// Pinned returns the pinned status for an exact URL.
func (o *Overrides) Pinned(rawURL string) (core.UrlStatus, bool) {
	if o == nil {
		return "", false
	}
	status, ok := o.Pin[rawURL]
	return status, ok
}
