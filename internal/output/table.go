package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/speclens/speclens/internal/core"
	"github.com/speclens/speclens/internal/report"
)

// TableFormatter renders reports as ASCII tables.
type TableFormatter struct{}

// FormatURLReport renders the bad and insecure URL tables.
func (f *TableFormatter) FormatURLReport(urls *report.URLReport) (string, error) {
	if urls == nil {
		return "", nil
	}

	parts := []string{urlSummaryLine(urls)}

	if bad := urls.BadRows(); len(bad) > 0 {
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Maintainer", "Package", "Use", "Error", "URL"})
		for _, row := range bad {
			t.AppendRow(table.Row{row.Maintainer, row.Package, row.Use.Label(), errorCell(row), row.URL})
		}
		t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d bad", len(bad)), ""})
		parts = append(parts, t.Render())
	}

	if insecure := urls.InsecureRows(); len(insecure) > 0 {
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Maintainer", "Package", "Use", "URL"})
		for _, row := range insecure {
			t.AppendRow(table.Row{row.Maintainer, row.Package, row.Use.Label(), row.URL})
		}
		t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d insecure", len(insecure)), ""})
		parts = append(parts, t.Render())
	}

	return strings.Join(parts, "\n\n"), nil
}

// FormatVersionReport renders the build report tables. Matching
// packages only show up in the summary line; they need no attention.
func (f *TableFormatter) FormatVersionReport(versions *report.VersionReport) (string, error) {
	if versions == nil {
		return "", nil
	}

	parts := []string{versionSummaryLine(versions)}

	if len(versions.Mismatches) > 0 {
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Maintainer", "RPM version", "Spec version", "Why"})
		for _, row := range versions.Mismatches {
			t.AppendRow(table.Row{row.Maintainer, row.Published, row.Spec, classLabel(row.Class)})
		}
		t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d mismatched", len(versions.Mismatches)), ""})
		parts = append(parts, t.Render())
	}

	if len(versions.NoSrpm) > 0 {
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Maintainer", "Package"})
		for _, row := range versions.NoSrpm {
			t.AppendRow(table.Row{row.Maintainer, row.Package})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d without SRPM", len(versions.NoSrpm))})
		parts = append(parts, t.Render())
	}

	if sections := renderSections(versionSections(versions), false); sections != "" {
		parts = append(parts, sections)
	}

	return strings.Join(parts, "\n\n"), nil
}

func renderRunTable(runs []*core.CheckRun, markdown bool) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Started", "Duration", "URLs", "Broken", "Cached", "Passes"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			runDuration(run),
			run.Total,
			run.Broken,
			run.FromCache,
			run.Passes,
		})
	}
	if markdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}

func runDuration(run *core.CheckRun) string {
	if run.StartedAt.IsZero() || run.FinishedAt.IsZero() {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}
