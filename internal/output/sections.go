package output

import (
	"fmt"
	"strings"

	"github.com/speclens/speclens/internal/report"
)

type reportSection struct {
	Title string
	Lines []string
}

// versionSections covers the parts of the build report that do not fit
// a table, currently only the unparseable spec list.
func versionSections(versions *report.VersionReport) []reportSection {
	if versions == nil {
		return nil
	}

	sections := make([]reportSection, 0, 1)
	if len(versions.ParseErrors) > 0 {
		lines := make([]string, 0, len(versions.ParseErrors))
		for _, row := range versions.ParseErrors {
			lines = append(lines, row.Package)
		}
		sections = append(sections, reportSection{
			Title: "Unparseable spec files",
			Lines: lines,
		})
	}
	return sections
}

func renderSections(sections []reportSection, markdown bool) string {
	if len(sections) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, section := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if markdown {
			sb.WriteString(fmt.Sprintf("### %s\n\n", section.Title))
			for _, line := range section.Lines {
				sb.WriteString(fmt.Sprintf("- %s\n", line))
			}
		} else {
			sb.WriteString(fmt.Sprintf("%s:\n", section.Title))
			for _, line := range section.Lines {
				sb.WriteString(fmt.Sprintf("  %s\n", line))
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
