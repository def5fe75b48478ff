// Package config holds the "cfmgr config" commands, which create, check,
// edit and print the server configuration file.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is "cfmgr config".
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the server configuration file",
	Long: `Manage the cfmgr server configuration file.

The file lives at $XDG_CONFIG_HOME/cfmgr/config.yaml unless --config names
another one. It declares the databases and buckets the server exposes
alongside the API, auth, logging, metrics and tracing settings.`,
}

func init() {
	Cmd.AddCommand(initCmd, editCmd, validateCmd, showCmd, schemaCmd)
}
