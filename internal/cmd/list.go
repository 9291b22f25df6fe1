package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/core/engine"
	"github.com/namelens/ascgate/internal/observability"
	"github.com/namelens/ascgate/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list <path>",
	Short: "List a paginated collection",
	Long: `List every resource of a collection, following next links until the
collection ends or --max resources have been read.

Example:
  ascgate list apps --param fields[apps]=name,bundleId --max 200`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Int("max", 0, "Stop after this many resources (0 = all)")
	listCmd.Flags().Int("limit", 0, "Page size requested from the API (0 = API default)")
	addParamFlag(listCmd)
	addOutputFlags(listCmd, "table", false)
}

func runList(cmd *cobra.Command, args []string) error {
	path, err := apiPath(args[0])
	if err != nil {
		return err
	}
	maxItems, err := cmd.Flags().GetInt("max")
	if err != nil {
		return err
	}
	pageSize, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if maxItems < 0 || pageSize < 0 {
		return core.NewFailure(core.KindValidation, "--max and --limit must not be negative")
	}
	query, err := resolveParams(cmd)
	if err != nil {
		return err
	}
	if pageSize > 0 {
		query.Set("limit", strconv.Itoa(pageSize))
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

	resources := make([]core.Resource, 0)
	for raw, err := range gw.Paginator.All(ctx, engine.Request{Path: path, Query: query}, maxItems) {
		if err != nil {
			return err
		}
		var resource core.Resource
		if err := json.Unmarshal(raw, &resource); err != nil {
			return core.WrapFailure(core.KindAPI, err, "decode list item")
		}
		resources = append(resources, resource)
	}

	observability.Logger().Debug("Listed collection",
		zap.String("path", path),
		zap.Int("count", len(resources)))

	rendered, err := output.NewFormatter(format).FormatResources(resources)
	if err != nil {
		return err
	}
	return writeRendered(cmd, format, path, rendered)
}
