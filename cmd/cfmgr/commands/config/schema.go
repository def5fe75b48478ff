package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/pkg/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [file]",
	Short: "Print the JSON schema of the configuration file",
	Long: `Print the JSON schema of the configuration file, or write it to file.

Point a YAML language server at it for completion while editing:

  # yaml-language-server: $schema=./cfmgr.schema.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := config.Schema()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", schema)
			return err
		}
		if err := os.WriteFile(args[0], schema, 0644); err != nil {
			return fmt.Errorf("failed to write schema: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", args[0])
		return nil
	},
}
