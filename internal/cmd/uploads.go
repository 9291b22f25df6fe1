package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/output"
)

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Show the local upload journal",
	Long: `Show recent uploads recorded in the local journal, newest first.

Use --prune to delete entries older than the given age.`,
	Args: cobra.NoArgs,
	RunE: runUploads,
}

func init() {
	rootCmd.AddCommand(uploadsCmd)

	uploadsCmd.Flags().Int("limit", 50, "Maximum number of entries to show")
	uploadsCmd.Flags().String("state", "", "Only show entries in this state: reserved, transferred, committed, failed")
	uploadsCmd.Flags().Duration("prune", 0, "Delete entries last updated longer ago than this (e.g. 720h)")
	addOutputFlags(uploadsCmd, "table", false)
}

func parseUploadState(value string) (core.UploadState, error) {
	state := core.UploadState(strings.ToLower(strings.TrimSpace(value)))
	switch state {
	case "", core.UploadStateReserved, core.UploadStateTransferred, core.UploadStateCommitted, core.UploadStateFailed:
		return state, nil
	default:
		return "", core.Failuref(core.KindValidation, "unknown upload state %q", value)
	}
}

func runUploads(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	stateFlag, err := cmd.Flags().GetString("state")
	if err != nil {
		return err
	}
	state, err := parseUploadState(stateFlag)
	if err != nil {
		return err
	}
	prune, err := cmd.Flags().GetDuration("prune")
	if err != nil {
		return err
	}
	if prune < 0 {
		return core.NewFailure(core.KindValidation, "--prune must not be negative")
	}
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	journal, err := openJournal(ctx)
	if err != nil {
		return err
	}
	defer journal.Close() // nolint:errcheck // best-effort cleanup

	if prune > 0 {
		removed, err := journal.PruneUploads(ctx, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Pruned %d upload(s) older than %s\n", removed, prune)
	}

	records, err := journal.ListUploads(ctx, state, limit)
	if err != nil {
		return err
	}

	rendered, err := output.NewFormatter(format).FormatUploads(records)
	if err != nil {
		return err
	}
	return writeRendered(cmd, format, "uploads", rendered)
}
