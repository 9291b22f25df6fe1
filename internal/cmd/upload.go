package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/core/engine"
	"github.com/namelens/ascgate/internal/output"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an asset into a screenshot or preview set",
	Long: `Upload an asset: reserve it in the target set, send every byte range to
the destinations the API returns, then commit it with its MD5 checksum.

Example:
  ascgate upload home.png --set 9f0c3a1e-...-set --kind screenshot`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().String("set", "", "ID of the set that receives the asset (required)")
	uploadCmd.Flags().String("kind", "screenshot", "Asset kind: "+strings.Join(core.AssetKindNames(), ", "))
	uploadCmd.Flags().String("name", "", "File name declared to the API (default: base name of <file>)")
	addOutputFlags(uploadCmd, "table", false)
	_ = uploadCmd.MarkFlagRequired("set")
}

func runUpload(cmd *cobra.Command, args []string) error {
	setID, err := cmd.Flags().GetString("set")
	if err != nil {
		return err
	}
	setID = strings.TrimSpace(setID)
	if setID == "" {
		return core.NewFailure(core.KindValidation, "--set is required")
	}
	kindName, err := cmd.Flags().GetString("kind")
	if err != nil {
		return err
	}
	kind, ok := core.LookupAssetKind(kindName)
	if !ok {
		return core.Failuref(core.KindValidation, "unknown asset kind %q (expected one of: %s)",
			kindName, strings.Join(core.AssetKindNames(), ", "))
	}
	fileName, err := cmd.Flags().GetString("name")
	if err != nil {
		return err
	}
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return core.WrapFailure(core.KindValidation, err, "stat upload file")
	}
	if info.IsDir() {
		return core.Failuref(core.KindValidation, "%s is a directory", path)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return core.WrapFailure(core.KindValidation, err, "read upload file")
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = filepath.Base(path)
	}

	ctx := cmd.Context()
	gw, err := openGateway(ctx)
	if err != nil {
		return err
	}
	defer gw.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	asset, err := gw.Uploader.Upload(ctx, engine.UploadInput{
		Kind:         kind,
		FileName:     fileName,
		DeclaredSize: info.Size(),
		SetID:        setID,
		Payload:      payload,
	})
	if err != nil {
		return err
	}

	rendered, err := output.FormatDocument(format, asset)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		rendered = fmt.Sprintf("Uploaded %s (%d bytes) as %s %s\n%s",
			fileName, info.Size(), asset.Type, asset.ID, rendered)
	}
	return writeRendered(cmd, format, fileName, rendered)
}
