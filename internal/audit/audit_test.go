package audit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speclens/speclens/internal/config"
	"github.com/speclens/speclens/internal/core"
	"github.com/speclens/speclens/internal/versioncheck"
)

// mirrorIndex mimics the nginx autoindex page the public mirrors
// serve for an SRPM media directory.
const mirrorIndex = `<html>
<head><title>Index of /distrib/cauldron/SRPMS/core/release/</title></head>
<body>
<h1>Index of /distrib/cauldron/SRPMS/core/release/</h1><hr><pre><a href="../">../</a>
<a href="curl-8.6.0-1.mga10.src.rpm">curl-8.6.0-1.mga10.src.rpm</a>   10-Feb-2026 09:11  2716412
<a href="media_info/">media_info/</a>                                  01-Mar-2026 04:00        -
<a href="zlib-1.3.1-3.mga10.src.rpm">zlib-1.3.1-3.mga10.src.rpm</a>   12-Feb-2026 11:02   628193
</pre><hr></body>
</html>
`

// rpmToolStub answers rpmspec and spectool calls from canned output
// keyed by the spec file base name.
type rpmToolStub struct {
	mu    sync.Mutex
	calls [][]string

	urls    map[string]string // homepage query stdout per spec
	sources map[string]string // spectool stdout per spec
	stubs   map[string]string // name stub query stdout per spec
}

func (s *rpmToolStub) run(_ context.Context, name string, args ...string) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string{name}, args...))
	s.mu.Unlock()

	spec := filepath.Base(args[len(args)-1])
	switch {
	case name == "spectool":
		return []byte(s.sources[spec]), nil
	case hasArg(args, "%{URL}\n"):
		return []byte(s.urls[spec]), nil
	case hasArg(args, "%{NAME}-%{VERSION}-%{RELEASE}\n"):
		stub, ok := s.stubs[spec]
		if !ok {
			return nil, fmt.Errorf("no stub scripted for %s", spec)
		}
		return []byte(stub), nil
	}
	return nil, fmt.Errorf("unexpected command %s %v", name, args)
}

func (s *rpmToolStub) snapshot() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.calls...)
}

func hasArg(args []string, want string) bool {
	for _, arg := range args {
		if arg == want {
			return true
		}
	}
	return false
}

// writeSpecTree lays out a spec-only checkout, one <pkg>/<pkg>.spec
// per package.
func writeSpecTree(t *testing.T, packages ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, pkg := range packages {
		dir := filepath.Join(root, pkg)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		spec := filepath.Join(dir, pkg+".spec")
		require.NoError(t, os.WriteFile(spec, []byte("Name: "+pkg+"\n"), 0o644))
	}
	return root
}

// newMirror serves the SRPM index and the maintainer roster the way
// the real infrastructure does.
func newMirror(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/distrib/cauldron/SRPMS/core/release/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, mirrorIndex)
	})
	mux.HandleFunc("/maintdb.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "curl jane\nzlib bob\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// auditConfig skips the network URL pass so runs stay hermetic; every
// URL settles as unchecked.
func auditConfig(baseURL string) *config.Config {
	return &config.Config{
		Check: config.CheckConfig{
			Workers:         2,
			BatchSize:       10,
			BatchSizeMin:    2,
			Timeout:         time.Second,
			TimeoutRedirect: time.Second,
			Skip:            true,
		},
		Probe: config.ProbeConfig{Engine: "native"},
		Scan:  config.ScanConfig{DistTag: "mga", Workers: 1},
		Mirror: config.MirrorConfig{
			BaseURL: baseURL + "/distrib/{version}/SRPMS/{media}/{section}/",
			Version: "cauldron",
			Section: "release",
			Medias:  []string{"core"},
		},
		Maintainers: config.MaintainersConfig{
			URL: baseURL + "/maintdb.txt",
			TTL: time.Hour,
		},
	}
}

func TestRunnerFullAudit(t *testing.T) {
	srv := newMirror(t)
	root := writeSpecTree(t, "brotli", "curl", "zlib")

	tools := &rpmToolStub{
		urls: map[string]string{
			"brotli.spec": "https://brotli.example.net\n",
			"curl.spec":   "https://curl.se\n",
			"zlib.spec":   "https://zlib.example.org\n",
		},
		sources: map[string]string{
			"brotli.spec": "Source0: https://brotli.example.net/brotli-1.1.0.tar.gz\n",
			"curl.spec":   "Source0: https://curl.se/download/curl-8.6.0.tar.xz\n",
			"zlib.spec":   "Source0: https://zlib.example.org/zlib-1.3.2.tar.gz\n",
		},
		stubs: map[string]string{
			"curl.spec": "curl-8.6.0-1.mga10\n",
			"zlib.spec": "zlib-1.3.2-1.mga10\n",
		},
	}

	fixed := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	runner := &Runner{
		Config: auditConfig(srv.URL),
		Clock:  func() time.Time { return fixed },
		Exec:   tools.run,
	}

	outcome, err := runner.Run(context.Background(), root, "*")
	require.NoError(t, err)

	require.NotEmpty(t, outcome.Run.ID)
	require.Equal(t, root, outcome.Run.Root)
	require.Equal(t, "spec only", outcome.Run.Style)
	require.Equal(t, fixed, outcome.Run.StartedAt)
	require.Equal(t, fixed, outcome.Run.FinishedAt)
	require.Equal(t, 3, outcome.Run.PackagesTotal)
	require.Equal(t, 1, outcome.Run.Mismatches)

	// skip_check leaves every URL unchecked, and unchecked counts as
	// needing attention, so the whole tree lands in the bad bucket.
	require.Equal(t, 6, outcome.URLs.Total)
	require.Equal(t, 6, outcome.URLs.Bad)
	require.Equal(t, 6, outcome.Run.URLsTotal)
	require.Equal(t, 6, outcome.Run.URLsBroken)

	require.Equal(t, 6, outcome.CheckRun.Total)
	for url, status := range outcome.CheckRun.Statuses {
		require.Equal(t, core.StatusUnchecked, status, url)
	}

	summary := outcome.Versions.Summary
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 1, summary.Matches)
	require.Equal(t, 1, summary.Mismatches)
	require.Equal(t, 1, summary.NoSrpm)
	require.Zero(t, summary.ParseErrors)

	require.Len(t, outcome.Versions.Mismatches, 1)
	mismatch := outcome.Versions.Mismatches[0]
	require.Equal(t, "zlib", mismatch.Package)
	require.Equal(t, "bob", mismatch.Maintainer)
	require.Equal(t, "zlib-1.3.1-3.mga10", mismatch.Published)
	require.Equal(t, "zlib-1.3.2-1.mga10", mismatch.Spec)
	require.Equal(t, versioncheck.MismatchOther, mismatch.Class)

	require.Len(t, outcome.Versions.Matches, 1)
	require.Equal(t, "curl", outcome.Versions.Matches[0].Package)
	require.Equal(t, "jane", outcome.Versions.Matches[0].Maintainer)

	// brotli is in the tree but not on the mirror; its maintainer is
	// not in the roster either.
	require.Len(t, outcome.Versions.NoSrpm, 1)
	require.Equal(t, "brotli", outcome.Versions.NoSrpm[0].Package)
	require.Equal(t, "?", outcome.Versions.NoSrpm[0].Maintainer)

	for _, row := range outcome.URLs.Rows {
		require.Equal(t, core.StatusUnchecked, row.Status)
	}
}

func TestRunnerAbortsOnEmptyMirror(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><body><pre><a href="../">../</a>`+"\n"+`</pre></body></html>`)
	}))
	defer srv.Close()

	tools := &rpmToolStub{}
	runner := &Runner{Config: auditConfig(srv.URL), Exec: tools.run}

	_, err := runner.Run(context.Background(), writeSpecTree(t, "curl"), "*")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty SRPM listing")

	// The catalog is built before any spec is parsed, so a dead
	// mirror aborts without touching the rpm tooling.
	require.Empty(t, tools.snapshot())
}

func TestRunnerVersionsOnly(t *testing.T) {
	srv := newMirror(t)
	root := writeSpecTree(t, "curl", "zlib")

	tools := &rpmToolStub{
		stubs: map[string]string{
			"curl.spec": "curl-8.6.0-1.mga10\n",
			"zlib.spec": "zlib-1.3.2-1.mga10\n",
		},
	}
	runner := &Runner{Config: auditConfig(srv.URL), Exec: tools.run}

	versions, err := runner.RunVersions(context.Background(), root, "*")
	require.NoError(t, err)
	require.Equal(t, "cauldron", versions.Version)
	require.Equal(t, "mga10", versions.Release)
	require.Equal(t, 2, versions.Summary.Total)
	require.Equal(t, 1, versions.Summary.Matches)
	require.Equal(t, 1, versions.Summary.Mismatches)

	// The versions pass runs stub queries only; no homepage or source
	// extraction happens.
	for _, call := range tools.snapshot() {
		require.Equal(t, "rpmspec", call[0])
		require.Contains(t, call, "%{NAME}-%{VERSION}-%{RELEASE}\n")
		require.Contains(t, call, "dist .mga10")
	}
}

func TestRunnerNeedsConfig(t *testing.T) {
	runner := &Runner{}

	_, err := runner.Run(context.Background(), "/srv/checkout", "*")
	require.Error(t, err)

	_, err = runner.RunVersions(context.Background(), "/srv/checkout", "*")
	require.Error(t, err)
}
