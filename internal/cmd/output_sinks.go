package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namelens/ascgate/internal/output"
)

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

func outputExtension(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatYAML:
		return "yaml"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

func sanitizeFilename(value string) string {
	clean := strings.ToLower(strings.TrimSpace(value))
	clean = nonFilename.ReplaceAllString(clean, "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "output"
	}
	return clean
}

// addOutputFlags registers --format, --out and optionally --out-dir.
func addOutputFlags(cmd *cobra.Command, defaultFormat string, withDir bool) {
	cmd.Flags().String("format", defaultFormat, "Output format: table, json, yaml, markdown")
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
	if withDir {
		cmd.Flags().String("out-dir", "", "Write output to a file named after the resource in this directory")
	}
}

func resolveOutputFormat(cmd *cobra.Command, allowed ...output.Format) (output.Format, error) {
	value, err := cmd.Flags().GetString("format")
	if err != nil {
		return "", err
	}
	format, err := output.ParseFormat(value)
	if err != nil {
		return "", err
	}
	if len(allowed) == 0 {
		return format, nil
	}
	for _, candidate := range allowed {
		if candidate == format {
			return format, nil
		}
	}
	return "", fmt.Errorf("unsupported output format for %s: %s", cmd.Name(), format)
}

func resolveOutputTargets(cmd *cobra.Command) (outPath string, outDir string, err error) {
	outPath, err = cmd.Flags().GetString("out")
	if err != nil {
		return "", "", err
	}
	if cmd.Flags().Lookup("out-dir") != nil {
		outDir, err = cmd.Flags().GetString("out-dir")
		if err != nil {
			return "", "", err
		}
	}
	if strings.TrimSpace(outPath) != "" && strings.TrimSpace(outDir) != "" {
		return "", "", fmt.Errorf("--out and --out-dir are mutually exclusive")
	}
	return strings.TrimSpace(outPath), strings.TrimSpace(outDir), nil
}

func openSink(path string, stdout io.Writer) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		return &outputSink{writer: stdout, close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}

func ensureOutDir(dir string) (string, error) {
	clean := strings.TrimSpace(dir)
	if clean == "" {
		return "", nil
	}
	if err := os.MkdirAll(clean, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return clean, nil
	}
	return abs, nil
}

// writeRendered writes rendered to the target chosen by --out/--out-dir.
// name is the file stem used with --out-dir.
func writeRendered(cmd *cobra.Command, format output.Format, name, rendered string) error {
	outPath, outDir, err := resolveOutputTargets(cmd)
	if err != nil {
		return err
	}
	if outDir != "" {
		dir, err := ensureOutDir(outDir)
		if err != nil {
			return err
		}
		outPath = filepath.Join(dir, sanitizeFilename(name)+"."+outputExtension(format))
	}

	sink, err := openSink(outPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer sink.close() // nolint:errcheck // best-effort cleanup

	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	if _, err := io.WriteString(sink.writer, rendered); err != nil {
		return err
	}
	if sink.path != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", sink.path)
	}
	return nil
}
