package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/namelens/ascgate/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatResources renders resources as a table.
func (f *TableFormatter) FormatResources(resources []core.Resource) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Type", "ID", "Attributes"})

	for _, r := range resources {
		t.AppendRow(table.Row{r.Type, r.ID, summarizeAttributes(r.Attributes)})
	}

	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d resource(s)", len(resources))})
	return t.Render(), nil
}

// FormatUploads renders upload journal entries as a table.
func (f *TableFormatter) FormatUploads(records []core.UploadRecord) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Kind", "File", "Size", "State", "Updated", "Error"})

	failed := 0
	for _, r := range records {
		if r.State == core.UploadStateFailed {
			failed++
		}
		t.AppendRow(table.Row{
			r.ID,
			r.Kind,
			r.FileName,
			humanSize(r.FileSize),
			uploadStateLabel(r.State),
			formatTime(r.UpdatedAt),
			truncate(r.Error, maxSummaryWidth),
		})
	}

	summary := fmt.Sprintf("%d upload(s)", len(records))
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	t.AppendFooter(table.Row{"", "", "", "", summary, "", ""})
	return t.Render(), nil
}
