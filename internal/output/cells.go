package output

import (
	"fmt"

	"github.com/speclens/speclens/internal/report"
	"github.com/speclens/speclens/internal/versioncheck"
)

func errorCell(row report.URLRow) string {
	if row.Note == "" {
		return row.Status.Description()
	}
	return fmt.Sprintf("%s (%s)", row.Status.Description(), row.Note)
}

func classLabel(class versioncheck.MismatchClass) string {
	switch class {
	case versioncheck.MismatchRelease:
		return "release only"
	case versioncheck.MismatchDistro:
		return "old distro build"
	default:
		return ""
	}
}

func urlSummaryLine(urls *report.URLReport) string {
	return fmt.Sprintf("%d URLs checked, %d bad, %d insecure (%s, %s)",
		urls.Total, urls.Bad, urls.Insecure,
		urls.Version, urls.GeneratedAt.Format("2006-01-02"))
}

func versionSummaryLine(versions *report.VersionReport) string {
	s := versions.Summary
	return fmt.Sprintf("%s (%s): %d specs, %d match, %d mismatch, %d without SRPM, %d unparseable",
		versions.Version, versions.Release,
		s.Total, s.Matches, s.Mismatches, s.NoSrpm, s.ParseErrors)
}
