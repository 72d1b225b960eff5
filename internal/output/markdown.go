package output

import (
	"fmt"
	"strings"

	"github.com/speclens/speclens/internal/report"
)

// MarkdownFormatter renders reports as markdown tables.
type MarkdownFormatter struct{}

// FormatURLReport renders the bad and insecure URL sections as Markdown.
func (f *MarkdownFormatter) FormatURLReport(urls *report.URLReport) (string, error) {
	if urls == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Spec URL report (%s)\n\n", urls.GeneratedAt.Format("2006-01-02")))
	sb.WriteString(urlSummaryLine(urls))
	sb.WriteString("\n")

	if bad := urls.BadRows(); len(bad) > 0 {
		sb.WriteString("\n### Bad URLs\n\n")
		sb.WriteString("| Maintainer | Package | Use | Error | URL |\n")
		sb.WriteString("|------------|---------|-----|-------|-----|\n")
		for _, row := range bad {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				escapeMarkdownCell(row.Maintainer),
				escapeMarkdownCell(row.Package),
				escapeMarkdownCell(row.Use.Label()),
				escapeMarkdownCell(errorCell(row)),
				escapeMarkdownCell(row.URL),
			))
		}
	}

	if insecure := urls.InsecureRows(); len(insecure) > 0 {
		sb.WriteString("\n### Insecure URLs\n\n")
		sb.WriteString("| Maintainer | Package | Use | URL |\n")
		sb.WriteString("|------------|---------|-----|-----|\n")
		for _, row := range insecure {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				escapeMarkdownCell(row.Maintainer),
				escapeMarkdownCell(row.Package),
				escapeMarkdownCell(row.Use.Label()),
				escapeMarkdownCell(row.URL),
			))
		}
	}

	return sb.String(), nil
}

// FormatVersionReport renders the build report as Markdown.
func (f *MarkdownFormatter) FormatVersionReport(versions *report.VersionReport) (string, error) {
	if versions == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s (%s) spec build report (%s)\n\n",
		escapeMarkdownCell(versions.Version),
		escapeMarkdownCell(versions.Release),
		versions.GeneratedAt.Format("2006-01-02")))
	sb.WriteString(versionSummaryLine(versions))
	sb.WriteString("\n")

	if len(versions.Mismatches) > 0 {
		sb.WriteString("\n### Wrong RPM version\n\n")
		sb.WriteString("| Maintainer | RPM version | Spec version | Why |\n")
		sb.WriteString("|------------|-------------|--------------|-----|\n")
		for _, row := range versions.Mismatches {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				escapeMarkdownCell(row.Maintainer),
				escapeMarkdownCell(row.Published),
				escapeMarkdownCell(row.Spec),
				escapeMarkdownCell(classLabel(row.Class)),
			))
		}
	}

	if len(versions.NoSrpm) > 0 {
		sb.WriteString("\n### Missing RPMs\n\n")
		sb.WriteString("| Maintainer | Package |\n")
		sb.WriteString("|------------|---------|\n")
		for _, row := range versions.NoSrpm {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n",
				escapeMarkdownCell(row.Maintainer),
				escapeMarkdownCell(row.Package),
			))
		}
	}

	if sections := renderSections(versionSections(versions), true); sections != "" {
		sb.WriteString("\n")
		sb.WriteString(sections)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
