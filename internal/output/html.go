package output

import (
	"bytes"

	"github.com/speclens/speclens/internal/report"
)

// HTMLFormatter renders the standalone HTML report pages.
type HTMLFormatter struct{}

// FormatURLReport renders the URL report page.
func (f *HTMLFormatter) FormatURLReport(urls *report.URLReport) (string, error) {
	if urls == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := report.RenderURLHTML(&buf, urls); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatVersionReport renders the build report page.
func (f *HTMLFormatter) FormatVersionReport(versions *report.VersionReport) (string, error) {
	if versions == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := report.RenderVersionHTML(&buf, versions); err != nil {
		return "", err
	}
	return buf.String(), nil
}
