package report

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speclens/speclens/internal/core"
	"github.com/speclens/speclens/internal/core/enrich"
	"github.com/speclens/speclens/internal/maintainers"
	"github.com/speclens/speclens/internal/rpmname"
	"github.com/speclens/speclens/internal/versioncheck"
)

var reportTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestAssembleURLJoinsStatuses(t *testing.T) {
	input := URLInput{
		Records: []core.UrlRecord{
			{Package: "curl", Use: core.UseHomepage, URL: "https://curl.se"},
			{Package: "curl", Use: core.UseSource, URL: "https://curl.se/download/curl-8.1.tar.xz"},
			{Package: "curl", Use: core.UsePatch, URL: "sftp://example.org/curl.patch"},
		},
		Statuses: map[string]core.UrlStatus{
			// The checker may have folded the bare host URL into its
			// trailing slash form.
			"https://curl.se/":                         core.StatusValid,
			"https://curl.se/download/curl-8.1.tar.xz": core.StatusNotFound,
		},
		Roster:      maintainers.Roster{"curl": "ftigeot"},
		GeneratedAt: reportTime,
	}

	report := AssembleURL(input)

	require.Equal(t, reportTime, report.GeneratedAt)
	require.Equal(t, DefaultVersion, report.Version)
	require.Len(t, report.Rows, 3)

	home := report.Rows[0]
	require.Equal(t, "ftigeot", home.Maintainer)
	require.Equal(t, core.StatusValid, home.Status)
	require.False(t, home.Bad())

	source := report.Rows[1]
	require.Equal(t, core.StatusNotFound, source.Status)
	require.True(t, source.Bad())

	// No status at all, not even under the slash variant.
	patch := report.Rows[2]
	require.Equal(t, core.StatusUnsupported, patch.Status)
}

func TestAssembleURLSortsRows(t *testing.T) {
	input := URLInput{
		Records: []core.UrlRecord{
			{Package: "zlib", Use: core.UseHomepage, URL: "https://zlib.net"},
			{Package: "curl", Use: core.UseSource, URL: "https://curl.se/b.tar.xz"},
			{Package: "curl", Use: core.UseSource, URL: "https://curl.se/a.tar.xz"},
			{Package: "curl", Use: core.UseHomepage, URL: "https://curl.se"},
		},
		GeneratedAt: reportTime,
	}

	report := AssembleURL(input)

	var got []string
	for _, row := range report.Rows {
		got = append(got, row.Package+" "+string(row.Use)+" "+row.URL)
	}
	require.Equal(t, []string{
		"curl homepage https://curl.se",
		"curl source https://curl.se/a.tar.xz",
		"curl source https://curl.se/b.tar.xz",
		"zlib homepage https://zlib.net",
	}, got)
}

func TestAssembleURLHomeAndHTTPSLinks(t *testing.T) {
	input := URLInput{
		Records: []core.UrlRecord{
			{Package: "curl", Use: core.UseHomepage, URL: "http://curl.se"},
			{Package: "curl", Use: core.UseSource, URL: "ftp://ftp.curl.se/curl-8.1.tar.xz"},
			{Package: "zlib", Use: core.UseSource, URL: "https://zlib.net/zlib-1.3.tar.gz"},
		},
		GeneratedAt: reportTime,
	}

	report := AssembleURL(input)
	require.Len(t, report.Rows, 3)

	home := report.Rows[0]
	require.True(t, home.Insecure)
	require.Equal(t, "https://curl.se", home.HTTPSURL)
	require.Empty(t, home.HomeURL, "home page rows do not link to themselves")

	source := report.Rows[1]
	require.True(t, source.Insecure)
	require.Equal(t, "https://ftp.curl.se/curl-8.1.tar.xz", source.HTTPSURL)
	require.Equal(t, "http://curl.se", source.HomeURL)

	// zlib has no home page row and already uses https.
	other := report.Rows[2]
	require.False(t, other.Insecure)
	require.Empty(t, other.HTTPSURL)
	require.Empty(t, other.HomeURL)
}

func TestAssembleURLSecureSchemes(t *testing.T) {
	input := URLInput{
		Records: []core.UrlRecord{
			{Package: "a", Use: core.UseSource, URL: "https://example.org/a"},
			{Package: "b", Use: core.UseSource, URL: "ftps://example.org/b"},
			{Package: "c", Use: core.UseSource, URL: "ftp://example.org/c"},
			{Package: "d", Use: core.UseSource, URL: "http://example.org/d"},
		},
		Statuses: map[string]core.UrlStatus{
			"https://example.org/a": core.StatusValid,
			"ftps://example.org/b":  core.StatusValid,
			"ftp://example.org/c":   core.StatusValid,
			"http://example.org/d":  core.StatusValid,
		},
		GeneratedAt: reportTime,
	}

	report := AssembleURL(input)

	require.Equal(t, 4, report.Total)
	require.Equal(t, 0, report.Bad)
	require.Equal(t, 2, report.Insecure)

	insecure := report.InsecureRows()
	require.Len(t, insecure, 2)
	require.Equal(t, "c", insecure[0].Package)
	require.Equal(t, "d", insecure[1].Package)

	// ftps is secure but still not https, so the swap link stays.
	require.Equal(t, "https://example.org/b", report.Rows[1].HTTPSURL)
}

func TestAssembleURLBadHostNote(t *testing.T) {
	input := URLInput{
		Records: []core.UrlRecord{
			{Package: "gone", Use: core.UseHomepage, URL: "http://files.gone-upstream.org/releases"},
			{Package: "alive", Use: core.UseHomepage, URL: "http://alive.example.org"},
		},
		Statuses: map[string]core.UrlStatus{
			"http://files.gone-upstream.org/releases": core.StatusBadHost,
			"http://alive.example.org":                core.StatusNotFound,
		},
		Annotations: map[string]enrich.Annotation{
			"gone-upstream.org": {Domain: "gone-upstream.org", Note: "domain is not registered"},
			"example.org":       {Domain: "example.org", Note: "domain is registered"},
		},
		GeneratedAt: reportTime,
	}

	report := AssembleURL(input)
	require.Len(t, report.Rows, 2)

	// alive has an annotation for its domain but its status is not
	// bad-host, so the note stays empty.
	require.Empty(t, report.Rows[0].Note)
	require.Equal(t, "domain is not registered", report.Rows[1].Note)
}

func TestAssembleURLInfoLinks(t *testing.T) {
	input := URLInput{
		Records: []core.UrlRecord{
			{Package: "perl-XML-Parser", Use: core.UseSource, URL: "http://example.org/src.tar.gz"},
		},
		Version:     "9",
		GeneratedAt: reportTime,
	}

	report := AssembleURL(input)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	require.Equal(t,
		"https://svnweb.mageia.org/packages/9/perl-XML-Parser/current/SPECS/perl-XML-Parser.spec?view=markup",
		row.SVN)
	require.Equal(t,
		"https://release-monitoring.org/projects/search/?pattern=perl-XML-Parser",
		row.RM)
	require.Equal(t,
		"https://directory.fsf.org/wiki?search=perl-XML-Parser",
		row.FSD)
	require.Equal(t,
		"https://web.archive.org/web/*/http://example.org/src.tar.gz",
		row.Arc)
}

func TestURLReportBadRows(t *testing.T) {
	report := &URLReport{
		Rows: []URLRow{
			{Package: "a", Status: core.StatusValid},
			{Package: "b", Status: core.StatusTimeout},
			{Package: "c", Status: core.StatusRedirect},
		},
	}

	bad := report.BadRows()
	require.Len(t, bad, 2)
	require.Equal(t, "b", bad[0].Package)
	require.Equal(t, "c", bad[1].Package)
}

func TestAssembleURLDefaults(t *testing.T) {
	report := AssembleURL(URLInput{})

	require.Equal(t, DefaultVersion, report.Version)
	require.WithinDuration(t, time.Now(), report.GeneratedAt, time.Minute)
	require.Empty(t, report.Rows)
	require.Zero(t, report.Total)
}

func TestSVNSpecURL(t *testing.T) {
	require.Equal(t,
		"https://svnweb.mageia.org/packages/cauldron/curl/current/SPECS/curl.spec?view=markup",
		SVNSpecURL("cauldron", "curl"))
	require.Equal(t,
		"https://svnweb.mageia.org/packages/9/gtk%2F3.0/current/SPECS/gtk%2F3.0.spec?view=markup",
		SVNSpecURL("9", "gtk/3.0"))
}

func TestAssembleVersionGroupsResults(t *testing.T) {
	input := VersionInput{
		Results: []versioncheck.Result{
			{Package: "curl", Kind: versioncheck.KindMatch, SpecBase: "curl-8.1-1.mga10", Published: "curl-8.1-1.mga10"},
			{Package: "dropped", Kind: versioncheck.KindNoSrpmFile},
			{Package: "lgeneral", Kind: versioncheck.KindMismatch, SpecBase: "lgeneral-1.3-1.mga10", Published: "lgeneral-1.2-3.mga10"},
			{Package: "rebuilt", Kind: versioncheck.KindMismatch, SpecBase: "rebuilt-2.0-2.mga10", Published: "rebuilt-2.0-1.mga10"},
			{Package: "stale", Kind: versioncheck.KindMismatch, SpecBase: "stale-1.0-1.mga10", Published: "stale-1.0-1.mga9"},
			{Package: "broken", Kind: versioncheck.KindParseError, Published: "broken-0.1-1.mga10"},
		},
		Roster:      maintainers.Roster{"curl": "ftigeot", "lgeneral": "barjac"},
		Version:     "cauldron",
		Release:     "mga10",
		GeneratedAt: reportTime,
	}

	report := AssembleVersion(input)

	require.Equal(t, "cauldron", report.Version)
	require.Equal(t, "mga10", report.Release)
	require.Equal(t, versioncheck.Summary{
		Total:       6,
		Matches:     1,
		Mismatches:  3,
		NoSrpm:      1,
		ParseErrors: 1,
	}, report.Summary)

	require.Len(t, report.Matches, 1)
	require.Equal(t, "ftigeot", report.Matches[0].Maintainer)
	require.Equal(t, "curl-8.1-1.mga10", report.Matches[0].Spec)
	require.True(t, report.MatchesListed)

	require.Len(t, report.NoSrpm, 1)
	require.Equal(t, "dropped", report.NoSrpm[0].Package)
	require.Equal(t, maintainers.Unknown, report.NoSrpm[0].Maintainer)
	require.Equal(t,
		"https://svnweb.mageia.org/packages/cauldron/dropped/current/SPECS/dropped.spec?view=markup",
		report.NoSrpm[0].SVN)

	require.Len(t, report.Mismatches, 3)
	require.Equal(t, "barjac", report.Mismatches[0].Maintainer)
	require.Equal(t, versioncheck.MismatchOther, report.Mismatches[0].Class)
	require.Equal(t, versioncheck.MismatchRelease, report.Mismatches[1].Class)
	require.Equal(t, versioncheck.MismatchDistro, report.Mismatches[2].Class)

	require.Len(t, report.ParseErrors, 1)
	require.Equal(t, "broken", report.ParseErrors[0].Package)
}

func TestAssembleVersionMatchLimit(t *testing.T) {
	many := make([]versioncheck.Result, 0, 301)
	for i := 0; i < 301; i++ {
		many = append(many, versioncheck.Result{
			Package:  fmt.Sprintf("pkg%03d", i),
			Kind:     versioncheck.KindMatch,
			SpecBase: fmt.Sprintf("pkg%03d-1.0-1.mga10", i),
		})
	}

	report := AssembleVersion(VersionInput{Results: many, GeneratedAt: reportTime})
	require.Len(t, report.Matches, 301)
	require.False(t, report.MatchesListed)

	report = AssembleVersion(VersionInput{Results: many[:300], GeneratedAt: reportTime})
	require.Len(t, report.Matches, 300)
	require.True(t, report.MatchesListed)
}

func TestAssembleVersionDefaults(t *testing.T) {
	report := AssembleVersion(VersionInput{})

	require.Equal(t, DefaultVersion, report.Version)
	require.Equal(t, versioncheck.DefaultRelease, report.Release)
	require.WithinDuration(t, time.Now(), report.GeneratedAt, time.Minute)
	require.True(t, report.MatchesListed)
}

func TestAssembleVersionCustomParser(t *testing.T) {
	input := VersionInput{
		Results: []versioncheck.Result{
			{Package: "tool", Kind: versioncheck.KindMismatch, SpecBase: "tool-1.0-2.omv1", Published: "tool-1.0-1.omv1"},
		},
		Parser:      rpmname.New("omv"),
		GeneratedAt: reportTime,
	}

	report := AssembleVersion(input)
	require.Len(t, report.Mismatches, 1)
	require.Equal(t, versioncheck.MismatchRelease, report.Mismatches[0].Class)
}
