package output

import (
	"fmt"
	"strings"

	"github.com/namelens/ascgate/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formatter renders gateway results.
type Formatter interface {
	FormatResources(resources []core.Resource) (string, error)
	FormatUploads(records []core.UploadRecord) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
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
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// FormatDocument renders a single resource. JSON and YAML render the object
// itself; table and markdown fall back to a one-row listing.
func FormatDocument(format Format, resource *core.Resource) (string, error) {
	if resource == nil {
		return "", nil
	}
	switch format {
	case FormatJSON:
		return (&JSONFormatter{Indent: true}).marshal(resource)
	case FormatYAML:
		return marshalYAML(resource)
	default:
		return NewFormatter(format).FormatResources([]core.Resource{*resource})
	}
}
