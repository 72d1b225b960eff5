package output

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/speclens/speclens/internal/core"
)

// FormatCheckRun renders the per-URL outcome of one run. Table and
// markdown list only the URLs needing attention, mirroring the URL
// report; JSON carries the full run including every status.
func FormatCheckRun(format Format, run *core.CheckRun) (string, error) {
	if run == nil {
		return "", nil
	}

	if format == FormatJSON {
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	summary := fmt.Sprintf("%d URLs checked, %d broken, %d from cache",
		run.Total, run.Broken, run.FromCache)

	var broken []string
	for rawURL, status := range run.Statuses {
		if status.NeedsAttention() {
			broken = append(broken, rawURL)
		}
	}
	if len(broken) == 0 {
		return summary, nil
	}
	sort.Strings(broken)

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Error", "URL"})
	for _, rawURL := range broken {
		t.AppendRow(table.Row{run.Statuses[rawURL].Description(), rawURL})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d broken", len(broken)), ""})

	rendered := t.Render()
	if format == FormatMarkdown {
		rendered = t.RenderMarkdown()
	}
	return summary + "\n\n" + rendered, nil
}
