package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/speclens/speclens/internal/core"
	"github.com/speclens/speclens/internal/report"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Formatter renders assembled reports.
type Formatter interface {
	FormatURLReport(urls *report.URLReport) (string, error)
	FormatVersionReport(versions *report.VersionReport) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatHTML):
		return FormatHTML, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatHTML:
		return &HTMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// FormatRunList renders stored check run summaries. HTML has no run
// listing, so it falls back to the table rendering.
func FormatRunList(format Format, runs []*core.CheckRun) (string, error) {
	if format == FormatJSON {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	kept := make([]*core.CheckRun, 0, len(runs))
	for _, run := range runs {
		if run != nil {
			kept = append(kept, run)
		}
	}
	if len(kept) == 0 {
		return "no stored runs", nil
	}
	return renderRunTable(kept, format == FormatMarkdown), nil
}
