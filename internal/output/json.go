package output

import (
	"encoding/json"

	"github.com/speclens/speclens/internal/report"
)

// JSONFormatter renders reports as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatURLReport renders the URL report as JSON.
func (f *JSONFormatter) FormatURLReport(urls *report.URLReport) (string, error) {
	if urls == nil {
		return "", nil
	}
	return f.marshal(urls)
}

// FormatVersionReport renders the build report as JSON.
func (f *JSONFormatter) FormatVersionReport(versions *report.VersionReport) (string, error) {
	if versions == nil {
		return "", nil
	}
	return f.marshal(versions)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
