package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Create a configuration file with default values: one SQLite database
named "main" and one in-memory bucket named "default".

Examples:
  # Create the file at the default location
  cfmgr config init

  # Create it elsewhere, replacing an existing file
  cfmgr config init --config /etc/cfmgr/config.yaml --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := cmdutil.Flags.ConfigFile

	var err error
	if configPath != "" {
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the databases and buckets sections")
	_, _ = fmt.Fprintln(out, "  2. Set auth.api_key or auth.jwt_secret to protect the API")
	_, _ = fmt.Fprintf(out, "  3. Start the server with: cfmgr start --config %s\n", configPath)
	return nil
}
