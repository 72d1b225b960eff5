// Package report joins check results with package ownership into the
// URL and version reports. Assembly is separate from rendering so the
// same report feeds the HTML, table and JSON outputs.
package report

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/speclens/speclens/internal/core"
	"github.com/speclens/speclens/internal/core/enrich"
	"github.com/speclens/speclens/internal/maintainers"
	"github.com/speclens/speclens/internal/rpmname"
	"github.com/speclens/speclens/internal/versioncheck"
)

// DefaultVersion is the distribution version reports link against.
const DefaultVersion = "cauldron"

// matchDisplayLimit caps how many version matches are listed
// individually; beyond it only the count is shown.
const matchDisplayLimit = 300

// URLRow is one URL of one package with everything a report needs.
type URLRow struct {
	Maintainer string         `json:"maintainer"`
	Package    string         `json:"package"`
	Use        core.UrlUse    `json:"use"`
	URL        string         `json:"url"`
	Status     core.UrlStatus `json:"status"`
	Insecure   bool           `json:"insecure"`

	// Note carries registration findings for dead hosts.
	Note string `json:"note,omitempty"`

	// HomeURL is the package home page, set only on source and patch
	// rows whose package declares one.
	HomeURL string `json:"home_url,omitempty"`

	// HTTPSURL is the URL with its scheme swapped to https, set only
	// when the URL is not already https.
	HTTPSURL string `json:"https_url,omitempty"`

	SVN string `json:"-"`
	RM  string `json:"-"`
	FSD string `json:"-"`
	Arc string `json:"-"`
}

// Bad reports whether the row belongs in the bad URLs table.
func (r URLRow) Bad() bool {
	return r.Status != core.StatusValid
}

// URLReport is the assembled outcome of a URL check run.
type URLReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
	Rows        []URLRow  `json:"rows"`
	Total       int       `json:"total"`
	Bad         int       `json:"bad"`
	Insecure    int       `json:"insecure"`
}

// BadRows returns the rows with any status other than valid.
func (r *URLReport) BadRows() []URLRow {
	var rows []URLRow
	for _, row := range r.Rows {
		if row.Bad() {
			rows = append(rows, row)
		}
	}
	return rows
}

// InsecureRows returns the rows whose scheme is not encrypted.
func (r *URLReport) InsecureRows() []URLRow {
	var rows []URLRow
	for _, row := range r.Rows {
		if row.Insecure {
			rows = append(rows, row)
		}
	}
	return rows
}

// URLInput bundles everything the URL report is assembled from.
type URLInput struct {
	Records     []core.UrlRecord
	Statuses    map[string]core.UrlStatus
	Roster      maintainers.Roster
	Annotations map[string]enrich.Annotation
	Version     string // "" means DefaultVersion
	GeneratedAt time.Time
}

// AssembleURL resolves each record's status and joins in maintainers
// and registration notes. Records whose URL is missing from the
// status map fall back to the trailing slash variant, which batch
// checking may have folded them into, and finally to unsupported.
func AssembleURL(input URLInput) *URLReport {
	version := input.Version
	if version == "" {
		version = DefaultVersion
	}
	generatedAt := input.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	report := &URLReport{
		GeneratedAt: generatedAt,
		Version:     version,
		Rows:        make([]URLRow, 0, len(input.Records)),
	}

	for _, record := range input.Records {
		status, ok := input.Statuses[record.URL]
		if !ok && !strings.HasSuffix(record.URL, "/") {
			status, ok = input.Statuses[record.URL+"/"]
		}
		if !ok {
			status = core.StatusUnsupported
		}

		row := URLRow{
			Maintainer: input.Roster.Packager(record.Package),
			Package:    record.Package,
			Use:        record.Use,
			URL:        record.URL,
			Status:     status,
		}

		scheme, schemeOK := core.SchemeOf(record.URL)
		row.Insecure = !core.SecureScheme(scheme)
		if schemeOK && scheme != "https" {
			row.HTTPSURL = "https" + record.URL[strings.Index(record.URL, ":"):]
		}

		if status == core.StatusBadHost {
			if domain, ok := enrich.DomainOf(record.URL); ok {
				if annotation, ok := input.Annotations[domain]; ok {
					row.Note = annotation.Note
				}
			}
		}

		row.SVN = SVNSpecURL(version, record.Package)
		row.RM = "https://release-monitoring.org/projects/search/?pattern=" + url.QueryEscape(record.Package)
		row.FSD = "https://directory.fsf.org/wiki?search=" + url.QueryEscape(record.Package)
		row.Arc = "https://web.archive.org/web/*/" + record.URL

		report.Rows = append(report.Rows, row)
	}

	sortURLRows(report.Rows)

	homePages := make(map[string]string)
	for _, row := range report.Rows {
		if row.Use == core.UseHomepage {
			homePages[row.Package] = row.URL
		}
	}
	for i := range report.Rows {
		row := &report.Rows[i]
		if row.Use == core.UseHomepage {
			continue
		}
		if home, ok := homePages[row.Package]; ok {
			row.HomeURL = home
		}
	}

	report.Total = len(report.Rows)
	for _, row := range report.Rows {
		if row.Bad() {
			report.Bad++
		}
		if row.Insecure {
			report.Insecure++
		}
	}
	return report
}

var useRank = map[core.UrlUse]int{
	core.UseHomepage: 0,
	core.UseSource:   1,
	core.UsePatch:    2,
}

func sortURLRows(rows []URLRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Package != b.Package {
			return a.Package < b.Package
		}
		if useRank[a.Use] != useRank[b.Use] {
			return useRank[a.Use] < useRank[b.Use]
		}
		return a.URL < b.URL
	})
}

// SVNSpecURL links to the spec file in the packaging VCS web view.
func SVNSpecURL(version, pkg string) string {
	escaped := url.PathEscape(pkg)
	return "https://svnweb.mageia.org/packages/" + url.PathEscape(version) +
		"/" + escaped + "/current/SPECS/" + escaped + ".spec?view=markup"
}

// VersionRow is one package's audit verdict with report context.
type VersionRow struct {
	Maintainer string `json:"maintainer"`
	Package    string `json:"package"`

	// Published is what the mirror serves, Spec what the spec file
	// would build.
	Published string `json:"published,omitempty"`
	Spec      string `json:"spec,omitempty"`

	// Class shades mismatch rows: distrib for stale distribution
	// builds, release for release-only differences.
	Class versioncheck.MismatchClass `json:"class,omitempty"`

	SVN string `json:"-"`
}

// VersionReport is the assembled outcome of a version audit.
type VersionReport struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Version     string              `json:"version"`
	Release     string              `json:"release"`
	Summary     versioncheck.Summary `json:"summary"`

	NoSrpm      []VersionRow `json:"no_srpm,omitempty"`
	Mismatches  []VersionRow `json:"mismatches,omitempty"`
	ParseErrors []VersionRow `json:"parse_errors,omitempty"`
	Matches     []VersionRow `json:"matches,omitempty"`

	// MatchesListed is false when there are too many matches to list
	// and only the count is reported.
	MatchesListed bool `json:"matches_listed"`
}

// VersionInput bundles everything the version report is built from.
type VersionInput struct {
	Results     []versioncheck.Result
	Roster      maintainers.Roster
	Parser      *rpmname.Parser
	Version     string // "" means DefaultVersion
	Release     string // "" means versioncheck.DefaultRelease
	GeneratedAt time.Time
}

// AssembleVersion groups audit results into report sections.
func AssembleVersion(input VersionInput) *VersionReport {
	version := input.Version
	if version == "" {
		version = DefaultVersion
	}
	release := input.Release
	if release == "" {
		release = versioncheck.DefaultRelease
	}
	generatedAt := input.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	parser := input.Parser
	if parser == nil {
		parser = rpmname.New("")
	}

	report := &VersionReport{
		GeneratedAt: generatedAt,
		Version:     version,
		Release:     release,
		Summary:     versioncheck.Summarize(input.Results),
	}

	for _, result := range input.Results {
		row := VersionRow{
			Maintainer: input.Roster.Packager(result.Package),
			Package:    result.Package,
			Published:  result.Published,
			Spec:       result.SpecBase,
			SVN:        SVNSpecURL(version, result.Package),
		}
		switch result.Kind {
		case versioncheck.KindNoSrpmFile:
			report.NoSrpm = append(report.NoSrpm, row)
		case versioncheck.KindParseError:
			report.ParseErrors = append(report.ParseErrors, row)
		case versioncheck.KindMismatch:
			row.Class = result.Class(parser)
			report.Mismatches = append(report.Mismatches, row)
		case versioncheck.KindMatch:
			report.Matches = append(report.Matches, row)
		}
	}

	report.MatchesListed = len(report.Matches) <= matchDisplayLimit
	return report
}
