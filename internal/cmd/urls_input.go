package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/speclens/speclens/internal/core"
)

func resolveURLs(positional []string, urlsFile string) ([]string, error) {
	trimmed := strings.TrimSpace(urlsFile)
	if trimmed != "" {
		if len(positional) > 0 {
			return nil, fmt.Errorf("cannot combine positional URLs with --urls-file")
		}
		return readURLsFile(trimmed)
	}

	urls := make([]string, 0, len(positional))
	for _, raw := range positional {
		rawURL := strings.TrimSpace(raw)
		if rawURL == "" {
			continue
		}
		if err := validateURL(rawURL); err != nil {
			return nil, err
		}
		urls = append(urls, rawURL)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}
	return urls, nil
}

func readURLsFile(path string) ([]string, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close() // nolint:errcheck
		reader = file
	}

	urls := make([]string, 0)
	scanner := bufio.NewScanner(reader)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if err := validateURL(raw); err != nil {
			return nil, fmt.Errorf("invalid URL on line %d: %w", line, err)
		}
		urls = append(urls, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs found")
	}
	return urls, nil
}

// validateURL rejects input that cannot be a single URL. Unsupported
// schemes pass; the checker settles those as UNSUPPORTED like it does
// for spec files.
func validateURL(rawURL string) error {
	if strings.ContainsAny(rawURL, " \t") {
		return fmt.Errorf("whitespace in URL %q", rawURL)
	}
	if _, ok := core.SchemeOf(rawURL); !ok {
		return fmt.Errorf("no scheme in URL %q", rawURL)
	}
	return nil
}
