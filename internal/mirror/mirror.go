// Package mirror fetches file listings from distribution mirrors.
// Mirrors publish SRPM directories over plain directory indexes, FTP
// or a local filesystem path, and the published file names are all
// the version audit needs.
package mirror

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
)

// Expand fills the {version}, {media} and {section} placeholders of a
// mirror URL template.
func Expand(template, version, media, section string) string {
	return strings.NewReplacer(
		"{version}", version,
		"{media}", media,
		"{section}", section,
	).Replace(template)
}

// Lister retrieves the file names published under a mirror directory.
type Lister struct {
	HTTPClient *http.Client  // nil means http.DefaultClient
	Timeout    time.Duration // FTP dial timeout, 0 means library default
	Logger     core.Logger
}

// List returns the entry names under the given directory URL. The
// scheme selects the transport: http(s) parses a directory index
// page, ftp(s) issues NLST, and file reads a local directory.
func (l *Lister) List(ctx context.Context, rawURL string) ([]string, error) {
	logger := core.LoggerOrNop(l.Logger)

	scheme, ok := core.SchemeOf(rawURL)
	if !ok {
		return nil, fmt.Errorf("not a valid mirror URL: %s", rawURL)
	}
	logger.Info("fetching mirror listing", zap.String("url", rawURL))

	switch scheme {
	case "http", "https":
		return l.listHTTP(ctx, rawURL)
	case "ftp", "ftps":
		return l.listFTP(ctx, rawURL, scheme == "ftps")
	case "file":
		return listFile(rawURL)
	default:
		return nil, fmt.Errorf("unsupported mirror scheme %q", scheme)
	}
}

func (l *Lister) listHTTP(ctx context.Context, rawURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch mirror listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch mirror listing %s: status %d", rawURL, resp.StatusCode)
	}
	return parseIndexPage(resp.Body)
}

// parseIndexPage extracts entry names from a directory index page.
// Header cells carry sort links and the first remaining row links
// back to the parent directory; both are navigation, not files.
// Subdirectory entries keep their trailing slash and are dropped.
func parseIndexPage(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse mirror listing: %w", err)
	}

	var hrefs []string
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		if s.Closest("th").Length() > 0 {
			return
		}
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if name, err := url.PathUnescape(href); err == nil {
			href = name
		}
		if strings.HasPrefix(href, "?") {
			return
		}
		hrefs = append(hrefs, href)
	})
	if len(hrefs) > 0 {
		hrefs = hrefs[1:]
	}

	names := hrefs[:0]
	for _, href := range hrefs {
		if strings.HasSuffix(href, "/") {
			continue
		}
		names = append(names, href)
	}
	return names, nil
}

func (l *Lister) listFTP(ctx context.Context, rawURL string, implicitTLS bool) ([]string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("not a valid mirror URL: %w", err)
	}

	host := parsed.Host
	if parsed.Port() == "" {
		port := "21"
		if implicitTLS {
			port = "990"
		}
		host = net.JoinHostPort(parsed.Hostname(), port)
	}

	dialOpts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if l.Timeout > 0 {
		dialOpts = append(dialOpts, ftp.DialWithTimeout(l.Timeout))
	}
	if implicitTLS {
		dialOpts = append(dialOpts, ftp.DialWithTLS(&tls.Config{ServerName: parsed.Hostname()}))
	}

	conn, err := ftp.Dial(host, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to mirror %s: %w", parsed.Host, err)
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("log in to mirror %s: %w", parsed.Host, err)
	}

	entries, err := conn.NameList(parsed.Path)
	if err != nil {
		return nil, fmt.Errorf("list mirror directory %s: %w", parsed.Path, err)
	}

	// NLST may answer with full paths.
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, path.Base(entry))
	}
	return names, nil
}

func listFile(rawURL string) ([]string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("not a valid mirror URL: %w", err)
	}
	if parsed.Host != "" && parsed.Host != "localhost" {
		return nil, fmt.Errorf("remote file URLs are not supported: %s", rawURL)
	}

	entries, err := os.ReadDir(parsed.Path)
	if err != nil {
		return nil, fmt.Errorf("list mirror directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}
