// Package commands implements the cfmgr CLI: the server lifecycle commands
// (start, stop, status, logs, config) and the client commands for the
// row-store (db) and object-store (bucket) APIs.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/cmd/cfmgr/commands/bucket"
	"github.com/marmos91/cfmgr/cmd/cfmgr/commands/config"
	cfmgrctx "github.com/marmos91/cfmgr/cmd/cfmgr/commands/context"
	"github.com/marmos91/cfmgr/cmd/cfmgr/commands/db"
	"github.com/marmos91/cfmgr/cmd/cfmgr/commands/token"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cfmgr",
	Short: "cfmgr - SQL databases and object buckets behind one API",
	Long: `cfmgr serves named SQL databases (row store) and object buckets
(object store) behind a REST API whose every response is a
{success, data|error, meta} envelope.

The same binary runs the server (start, stop, status, logs, config) and
talks to it (login, db, bucket).

Use "cfmgr [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ConfigFile = cfgFile
		cmdutil.Flags.ServerURL = serverURL
		cmdutil.Flags.APIKey = apiKey
		cmdutil.Flags.Token = authToken
		cmdutil.Flags.Output = outputFormat
		cmdutil.Flags.NoColor = noColor
		cmdutil.Flags.Verbose = verbose
	},
}

var (
	cfgFile      string
	serverURL    string
	apiKey       string
	authToken    string
	outputFormat string
	noColor      bool
	verbose      bool
)

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/cfmgr/config.yaml)")
	flags.StringVar(&serverURL, "server", "", "Server URL (overrides current context)")
	flags.StringVar(&apiKey, "api-key", "", "API key (overrides current context)")
	flags.StringVar(&authToken, "token", "", "Bearer token (overrides current context)")
	flags.StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Server lifecycle
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(token.Cmd)

	// Client
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(cfmgrctx.Cmd)
	rootCmd.AddCommand(db.Cmd)
	rootCmd.AddCommand(bucket.Cmd)

	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
