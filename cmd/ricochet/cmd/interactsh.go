package cmd

import (
	"github.com/spf13/cobra"

	"ricochet.dev/ricochet/internal/rerrors"
	"ricochet.dev/ricochet/internal/token"
)

// newInteractshCmd is a thin external-collaborator stand-in: `url` mints a
// token locally and prints a conventional OAST hostname; `poll` makes no
// network call and says so.
func newInteractshCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "interactsh",
		Short: "Mint a collaborator-style callback hostname (no real OAST polling)",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "oast.example", "collaborator server suffix appended to the minted token")

	urlCmd := &cobra.Command{
		Use:   "url",
		Short: "Mint a token and print a <token>.<server> hostname",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := token.New()
			if err != nil {
				return err
			}
			printSuccess("%s.%s", tok, server)
			return nil
		},
	}

	var correlationID string
	pollCmd := &cobra.Command{
		Use:   "poll",
		Short: "Not supported: ricochet does not poll a remote collaborator server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rerrors.UsageError("interactsh poll is not supported: ricochet correlates via its own HTTP/DNS listeners (see `ricochet listen`), not by polling a remote collaborator server")
		},
	}
	pollCmd.Flags().StringVar(&correlationID, "correlation-id", "", "token to poll (unused; always returns a usage error)")

	cmd.AddCommand(urlCmd, pollCmd)
	return cmd
}
