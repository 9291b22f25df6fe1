package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/namelens/ascgate/internal/core"
)

const maxSummaryWidth = 72

// summaryKeys are shown first when present; the rest follow alphabetically.
var summaryKeys = []string{"name", "bundleId", "sku", "fileName", "versionString", "platform", "state"}

func summarizeAttributes(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}

	keys := make([]string, 0, len(attrs))
	seen := make(map[string]bool, len(summaryKeys))
	for _, key := range summaryKeys {
		if _, ok := attrs[key]; ok {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	rest := make([]string, 0, len(attrs))
	for key := range attrs {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := scalar(attrs[key])
		if value == "" {
			continue
		}
		parts = append(parts, key+"="+value)
	}
	return truncate(strings.Join(parts, "; "), maxSummaryWidth)
}

func scalar(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool, float64, int, int64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}

func uploadStateLabel(state core.UploadState) string {
	switch state {
	case core.UploadStateCommitted, core.UploadStateFailed,
		core.UploadStateTransferred, core.UploadStateReserved:
		return string(state)
	case "":
		return "unknown"
	default:
		return string(state) + " (unrecognized)"
	}
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
