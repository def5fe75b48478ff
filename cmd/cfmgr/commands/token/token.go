// Package token implements the credential subcommands that run against
// the local configuration: issuing bearer tokens and hashing API keys.
package token

import (
	"github.com/spf13/cobra"
)

// Cmd is the token subcommand.
var Cmd = &cobra.Command{
	Use:   "token",
	Short: "Issue bearer tokens and hash API keys",
	Long: `Manage API credentials using the local configuration file.

These commands read auth.jwt_secret from the configuration and never talk
to a running server.

Subcommands:
  issue     Sign a bearer token
  hash-key  Print the bcrypt hash of an API key for auth.api_key_hash`,
}

func init() {
	Cmd.AddCommand(issueCmd)
	Cmd.AddCommand(hashKeyCmd)
}
