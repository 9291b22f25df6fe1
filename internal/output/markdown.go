package output

import (
	"fmt"
	"strings"

	"github.com/namelens/ascgate/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatResources renders resources as Markdown.
func (f *MarkdownFormatter) FormatResources(resources []core.Resource) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Type | ID | Attributes |\n")
	sb.WriteString("|------|----|------------|\n")

	for _, r := range resources {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeMarkdownCell(r.Type),
			escapeMarkdownCell(r.ID),
			escapeMarkdownCell(summarizeAttributes(r.Attributes)),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Total**: %d resource(s)\n", len(resources)))
	return sb.String(), nil
}

// FormatUploads renders upload journal entries as Markdown.
func (f *MarkdownFormatter) FormatUploads(records []core.UploadRecord) (string, error) {
	var sb strings.Builder
	sb.WriteString("| ID | Kind | File | Size | State | Updated |\n")
	sb.WriteString("|----|------|------|------|-------|---------|\n")

	for _, r := range records {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			escapeMarkdownCell(r.ID),
			escapeMarkdownCell(r.Kind),
			escapeMarkdownCell(r.FileName),
			humanSize(r.FileSize),
			escapeMarkdownCell(uploadStateLabel(r.State)),
			formatTime(r.UpdatedAt),
		))
	}

	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
