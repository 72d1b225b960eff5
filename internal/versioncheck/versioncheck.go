// Package versioncheck compares the versions spec files would build
// against the SRPMs a distribution mirror actually publishes. A spec
// that builds a different name-version-release than the mirror serves
// means the maintainer committed without submitting, or the mirror
// still carries a stale build.
package versioncheck

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
	"github.com/speclens/speclens/internal/mirror"
	"github.com/speclens/speclens/internal/rpmname"
	"github.com/speclens/speclens/internal/spectree"
)

// DefaultRelease is the dist release stamped into stub queries,
// matching the current development distribution.
const DefaultRelease = "mga10"

// Kind is the audit verdict for one package.
type Kind string

const (
	// KindNoSrpmFile marks a package directory with no published SRPM.
	KindNoSrpmFile Kind = "no_srpm_file"
	// KindParseError marks a spec the rpm tooling could not parse.
	KindParseError Kind = "parse_error"
	// KindMatch marks a spec whose build matches a published SRPM.
	KindMatch Kind = "match"
	// KindMismatch marks a spec that builds something the mirror
	// does not serve.
	KindMismatch Kind = "mismatch"
)

// Result is the verdict for one package directory.
type Result struct {
	Package string `json:"package"`
	Kind    Kind   `json:"kind"`

	// SpecBase is the canonical base name the spec builds, empty when
	// the spec could not be parsed.
	SpecBase string `json:"spec_base,omitempty"`

	// Published is the base name the mirror publishes for this
	// package, empty when it publishes none.
	Published string `json:"published,omitempty"`
}

// MismatchClass distinguishes why the published and spec names differ.
type MismatchClass string

const (
	// MismatchOther is a plain version gap.
	MismatchOther MismatchClass = ""
	// MismatchDistro means the published SRPM was built for a
	// different distribution release.
	MismatchDistro MismatchClass = "distrib"
	// MismatchRelease means the same version differs only in its
	// release field.
	MismatchRelease MismatchClass = "release"
)

// Class reports why a mismatch differs. Distribution gaps outrank
// release-only rebuilds.
func (r Result) Class(parser *rpmname.Parser) MismatchClass {
	if r.Kind != KindMismatch {
		return MismatchOther
	}
	pub, okPub := parser.ParseBase(r.Published)
	spec, okSpec := parser.ParseBase(r.SpecBase)
	if !okPub || !okSpec {
		return MismatchOther
	}
	if pub.DistRelease != spec.DistRelease {
		return MismatchDistro
	}
	if pub.Name == spec.Name && pub.Version == spec.Version {
		return MismatchRelease
	}
	return MismatchOther
}

// Summary tallies audit results by kind.
type Summary struct {
	Total       int `json:"total"`
	Matches     int `json:"matches"`
	Mismatches  int `json:"mismatches"`
	NoSrpm      int `json:"no_srpm"`
	ParseErrors int `json:"parse_errors"`
}

// Summarize counts results per verdict.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Kind {
		case KindMatch:
			s.Matches++
		case KindMismatch:
			s.Mismatches++
		case KindNoSrpmFile:
			s.NoSrpm++
		case KindParseError:
			s.ParseErrors++
		}
	}
	return s
}

// Catalog indexes the SRPMs a mirror publishes: the base name served
// per package plus the set of every base name across all medias.
type Catalog struct {
	published map[string]string
	bases     map[string]struct{}
}

// Has reports whether any media publishes an SRPM for the package.
func (c *Catalog) Has(pkg string) bool {
	_, ok := c.published[pkg]
	return ok
}

// Published returns the base name shown in reports for a package.
// When several medias carry the package the one indexed last wins.
func (c *Catalog) Published(pkg string) (string, bool) {
	base, ok := c.published[pkg]
	return base, ok
}

// HasBase reports whether any media publishes exactly this base name.
func (c *Catalog) HasBase(base string) bool {
	_, ok := c.bases[base]
	return ok
}

// Len returns the number of distinct packages published.
func (c *Catalog) Len() int {
	return len(c.published)
}

// DirLister fetches the entry names under a mirror directory URL.
type DirLister interface {
	List(ctx context.Context, url string) ([]string, error)
}

// Source describes where published SRPMs live. Medias are indexed in
// order; packages published in several medias display the base name
// of the last media that carries them, while matching considers every
// media.
type Source struct {
	Template string
	Version  string
	Section  string
	Medias   []string
}

// BuildCatalog lists every media directory of the source and indexes
// the SRPM names found there. An empty media listing aborts the run
// since it would flag every package as unpublished.
func BuildCatalog(ctx context.Context, lister DirLister, src Source, parser *rpmname.Parser, logger core.Logger) (*Catalog, error) {
	logger = core.LoggerOrNop(logger)

	catalog := &Catalog{
		published: make(map[string]string),
		bases:     make(map[string]struct{}),
	}
	for _, media := range src.Medias {
		dirURL := mirror.Expand(src.Template, src.Version, media, src.Section)
		names, err := lister.List(ctx, dirURL)
		if err != nil {
			return nil, fmt.Errorf("index media %s: %w", media, err)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("empty SRPM listing at %s", dirURL)
		}

		indexed := 0
		for _, name := range names {
			if !strings.HasSuffix(name, ".rpm") {
				continue
			}
			nvr, ok := parser.ParseFile(name)
			if !ok {
				logger.Warn("unparseable SRPM file name", zap.String("file", name))
				continue
			}
			base := nvr.BaseName()
			catalog.published[nvr.Name] = base
			catalog.bases[base] = struct{}{}
			indexed++
		}
		logger.Info("indexed SRPM media",
			zap.String("media", media), zap.Int("srpms", indexed))
	}
	return catalog, nil
}

// SpecQuerier resolves the name-version-release stub a spec builds.
type SpecQuerier interface {
	SRPMStub(ctx context.Context, specPath, release string) (string, error)
}

// Auditor checks every package of a checkout tree against a catalog.
type Auditor struct {
	Specs   SpecQuerier
	Catalog *Catalog
	Parser  *rpmname.Parser
	Release string // dist release for stub queries, "" means DefaultRelease
	Workers int
	Logger  core.Logger
}

func (a *Auditor) release() string {
	if a.Release != "" {
		return a.Release
	}
	return DefaultRelease
}

// Audit scans the checkout tree and returns one result per package,
// sorted by package name.
func (a *Auditor) Audit(ctx context.Context, root, pattern string) ([]Result, error) {
	logger := core.LoggerOrNop(a.Logger)

	dirs, err := spectree.PackageDirs(root, pattern)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no package directories found under %s", root)
	}
	style, err := spectree.DetectStyle(root, pattern)
	if err != nil {
		return nil, err
	}
	if style == spectree.StyleUnknown {
		return nil, fmt.Errorf("cannot determine spec checkout style")
	}
	logger.Info("auditing spec versions",
		zap.String("root", root),
		zap.String("style", style.Label()),
		zap.Int("packages", len(dirs)),
		zap.Int("published", a.Catalog.Len()))

	results := make([]Result, 0, len(dirs))
	var mu sync.Mutex

	err = spectree.ForEachPackage(ctx, dirs, a.Workers, a.Logger, func(pkgDir string) {
		result := a.checkPackage(ctx, pkgDir, style)
		mu.Lock()
		results = append(results, result)
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Package < results[j].Package })
	return results, nil
}

func (a *Auditor) checkPackage(ctx context.Context, pkgDir string, style spectree.Style) Result {
	logger := core.LoggerOrNop(a.Logger)
	pkg := filepath.Base(pkgDir)

	published, ok := a.Catalog.Published(pkg)
	if !ok {
		return Result{Package: pkg, Kind: KindNoSrpmFile}
	}

	specPath, err := spectree.SpecPath(pkgDir, style)
	if err != nil {
		logger.Error("cannot build spec path", zap.String("package", pkg), zap.Error(err))
		return Result{Package: pkg, Kind: KindParseError, Published: published}
	}

	stub, err := a.Specs.SRPMStub(ctx, specPath, a.release())
	if err != nil {
		logger.Error("cannot query spec stub", zap.String("spec", specPath), zap.Error(err))
		return Result{Package: pkg, Kind: KindParseError, Published: published}
	}

	base, ok := a.Parser.Canonical(stub)
	if !ok {
		logger.Error("unparseable spec stub",
			zap.String("package", pkg), zap.String("stub", stub))
		return Result{Package: pkg, Kind: KindParseError, Published: published}
	}

	if a.Catalog.HasBase(base) {
		return Result{Package: pkg, Kind: KindMatch, SpecBase: base, Published: published}
	}
	return Result{Package: pkg, Kind: KindMismatch, SpecBase: base, Published: published}
}
