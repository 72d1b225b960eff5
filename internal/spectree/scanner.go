package spectree

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
)

// CommandRunner executes a local command and returns its stdout.
// Partial stdout is returned alongside a non-nil error when the
// command produced output before failing.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return out, fmt.Errorf("%s: %s", name, firstLine(string(exitErr.Stderr)))
	}
	return out, err
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

// Scanner queries spec files through the rpm tooling.
type Scanner struct {
	RPMSpec  string // rpmspec binary, "rpmspec" when empty
	Spectool string // spectool binary, "spectool" when empty
	Workers  int    // scanning pool size, 0 means DefaultWorkers

	// Exec is overridable for tests; nil runs real commands.
	Exec CommandRunner

	Logger core.Logger
}

// Result is the outcome of scanning one checkout tree.
type Result struct {
	Root       string
	Style      Style
	Packages   []string // package directory paths, sorted
	Records    []core.UrlRecord
	SpecErrors int
}

func (s *Scanner) rpmspec() string {
	if s.RPMSpec != "" {
		return s.RPMSpec
	}
	return "rpmspec"
}

func (s *Scanner) spectool() string {
	if s.Spectool != "" {
		return s.Spectool
	}
	return "spectool"
}

func (s *Scanner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.Exec != nil {
		return s.Exec(ctx, name, args...)
	}
	return runCommand(ctx, name, args...)
}

// URLs returns the distinct homepage URLs declared by a spec file,
// one per subpackage that declares one. Invalid URLs are skipped with
// a warning. On a parse failure whatever URLs were emitted before the
// failure are still returned alongside the error.
func (s *Scanner) URLs(ctx context.Context, specPath string) ([]string, error) {
	out, err := s.run(ctx, s.rpmspec(), "-q", "--queryformat", "%{URL}\n", "--", specPath)
	urls := s.parseURLLines(out)
	if err != nil {
		return urls, fmt.Errorf("parse spec file %s: %w", specPath, err)
	}
	return urls, nil
}

func (s *Scanner) parseURLLines(out []byte) []string {
	logger := core.LoggerOrNop(s.Logger)

	var urls []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		rawURL := strings.TrimSpace(scanner.Text())
		if rawURL == "" || rawURL == "(none)" {
			continue
		}
		if _, ok := core.SchemeOf(rawURL); !ok {
			logger.Warn("not a valid URL in spec file; skipping", zap.String("url", rawURL))
			continue
		}
		if _, dup := seen[rawURL]; dup {
			continue
		}
		seen[rawURL] = struct{}{}
		urls = append(urls, rawURL)
	}
	return urls
}

// Sources returns the distinct source and patch URLs of a spec file.
// When spectool is not installed, rpmspec --parse recovers the same
// fields. Bare file names without a scheme are not download URLs and
// are skipped.
func (s *Scanner) Sources(ctx context.Context, specPath string) (sources, patches []string, err error) {
	out, execErr := s.run(ctx, s.spectool(), "--", specPath)
	if execErr != nil && errors.Is(execErr, exec.ErrNotFound) {
		out, execErr = s.run(ctx, s.rpmspec(), "--parse", "--", specPath)
	}
	sources, patches = parseSourceLines(out)
	if execErr != nil {
		return sources, patches, fmt.Errorf("parse spec file %s: %w", specPath, execErr)
	}
	return sources, patches, nil
}

func parseSourceLines(out []byte) (sources, patches []string) {
	seenSource := make(map[string]struct{})
	seenPatch := make(map[string]struct{})

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		key := strings.ToLower(fields[0])
		rawURL := fields[len(fields)-1]
		if _, ok := core.SchemeOf(rawURL); !ok {
			continue
		}
		switch {
		case strings.HasPrefix(key, "source"):
			if _, dup := seenSource[rawURL]; !dup {
				seenSource[rawURL] = struct{}{}
				sources = append(sources, rawURL)
			}
		case strings.HasPrefix(key, "patch"):
			if _, dup := seenPatch[rawURL]; !dup {
				seenPatch[rawURL] = struct{}{}
				patches = append(patches, rawURL)
			}
		}
	}
	return sources, patches
}

// SRPMStub queries the name-version-release stub the spec file would
// build into, such as "curl-8.6.0-1.mga10". The dist tag is forced so
// the result does not depend on the host distribution.
func (s *Scanner) SRPMStub(ctx context.Context, specPath, release string) (string, error) {
	out, err := s.run(ctx, s.rpmspec(),
		"-q", "-D", "dist ."+release,
		"--queryformat", "%{NAME}-%{VERSION}-%{RELEASE}\n",
		"--", specPath)
	if err != nil {
		return "", fmt.Errorf("parse spec file %s: %w", specPath, err)
	}
	// Several RPMs may be generated; the first line belongs to the SRPM.
	stub := firstLine(string(out))
	if stub == "" {
		return "", fmt.Errorf("no name stub from %s", specPath)
	}
	return stub, nil
}

// Scan walks the checkout tree and returns one UrlRecord per distinct
// (package, use, url) triple, every status UNCHECKED. Packages whose
// spec cannot be parsed contribute whatever fields were recovered and
// are counted in SpecErrors.
func (s *Scanner) Scan(ctx context.Context, root, pattern string) (*Result, error) {
	logger := core.LoggerOrNop(s.Logger)

	dirs, err := PackageDirs(root, pattern)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no package directories found under %s", root)
	}

	style, err := DetectStyle(root, pattern)
	if err != nil {
		return nil, err
	}
	logger.Info("spec checkout style", zap.String("style", style.Label()))
	if style == StyleUnknown {
		return nil, errors.New("cannot determine spec checkout style")
	}
	logger.Info("scanning spec tree",
		zap.String("root", root), zap.Int("packages", len(dirs)))

	result := &Result{Root: root, Style: style, Packages: dirs}
	var mu sync.Mutex

	err = ForEachPackage(ctx, dirs, s.Workers, s.Logger, func(pkgDir string) {
		records, specErrs := s.scanPackage(ctx, pkgDir, style)
		mu.Lock()
		result.Records = append(result.Records, records...)
		result.SpecErrors += specErrs
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	sortRecords(result.Records)
	return result, nil
}

func (s *Scanner) scanPackage(ctx context.Context, pkgDir string, style Style) ([]core.UrlRecord, int) {
	logger := core.LoggerOrNop(s.Logger)

	specPath, err := SpecPath(pkgDir, style)
	if err != nil {
		logger.Error("cannot build spec path", zap.String("package", pkgDir), zap.Error(err))
		return nil, 1
	}
	pkg := filepath.Base(pkgDir)

	specErrs := 0
	var records []core.UrlRecord
	add := func(use core.UrlUse, urls []string) {
		for _, rawURL := range urls {
			records = append(records, core.UrlRecord{
				Package: pkg,
				Use:     use,
				URL:     rawURL,
				Status:  core.StatusUnchecked,
			})
		}
	}

	urls, err := s.URLs(ctx, specPath)
	if err != nil {
		logger.Error("cannot query spec URLs", zap.String("spec", specPath), zap.Error(err))
		specErrs++
	}
	add(core.UseHomepage, urls)

	sources, patches, err := s.Sources(ctx, specPath)
	if err != nil {
		logger.Error("cannot query spec sources", zap.String("spec", specPath), zap.Error(err))
		specErrs++
	}
	add(core.UseSource, sources)
	add(core.UsePatch, patches)

	return records, specErrs
}

var useRank = map[core.UrlUse]int{
	core.UseHomepage: 0,
	core.UseSource:   1,
	core.UsePatch:    2,
}

func sortRecords(records []core.UrlRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Package != b.Package {
			return a.Package < b.Package
		}
		if useRank[a.Use] != useRank[b.Use] {
			return useRank[a.Use] < useRank[b.Use]
		}
		return a.URL < b.URL
	})
}
