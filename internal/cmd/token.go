package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/namelens/ascgate/internal/gateway"
)

var tokenReveal bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a bearer credential and show its validity window",
	Long: `Sign a bearer credential with the configured API key and print its
issuer, key ID and expiry. The token itself is only printed with --reveal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		gw, err := openGateway(ctx, gateway.WithoutStore())
		if err != nil {
			return err
		}
		defer gw.Close() // nolint:errcheck // best-effort cleanup

		credential, err := gw.Credentials.Acquire(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Issuer:  %s\n", gw.Credentials.IssuerID())
		fmt.Fprintf(out, "Key ID:  %s\n", gw.Credentials.KeyID())
		fmt.Fprintf(out, "Issued:  %s\n", credential.IssuedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(out, "Expires: %s (in %s)\n",
			credential.ExpiresAt.UTC().Format(time.RFC3339),
			time.Until(credential.ExpiresAt).Round(time.Second))
		if tokenReveal {
			fmt.Fprintf(out, "Token:   %s\n", credential.Token)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().BoolVar(&tokenReveal, "reveal", false, "print the signed token")
}
