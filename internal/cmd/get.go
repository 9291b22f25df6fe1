package cmd

import (
	"github.com/spf13/cobra"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/core/engine"
	"github.com/namelens/ascgate/internal/output"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Fetch a single resource",
	Long: `Fetch a single resource document.

Example:
  ascgate get apps/1234567890 --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)

	addParamFlag(getCmd)
	addOutputFlags(getCmd, "json", true)
}

func runGet(cmd *cobra.Command, args []string) error {
	path, err := apiPath(args[0])
	if err != nil {
		return err
	}
	query, err := resolveParams(cmd)
	if err != nil {
		return err
	}
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	gw, err := openGateway(ctx)
	if err != nil {
		return err
	}
	defer gw.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	resp, err := gw.Executor.Execute(ctx, engine.Request{Path: path, Query: query})
	if err != nil {
		return err
	}
	if resp.NoContent() {
		return core.Failuref(core.KindNotFound, "%s returned no content", path)
	}

	var doc core.Document
	if err := resp.Decode(&doc); err != nil {
		return err
	}

	rendered, err := output.FormatDocument(format, &doc.Data)
	if err != nil {
		return err
	}
	return writeRendered(cmd, format, doc.Data.Type+"-"+doc.Data.ID, rendered)
}
