package config

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the cfmgr configuration file.

Checks for syntax errors, missing required fields, invalid values and
invalid backend options for every database and bucket.

Examples:
  # Validate default config
  cfmgr config validate

  # Validate specific config file
  cfmgr config validate --config /etc/cfmgr/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath := cmdutil.Flags.ConfigFile

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.Server.Port)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	for _, name := range sortedNames(cfg.Databases) {
		_, _ = fmt.Fprintf(out, "  Database:        %s (%s)\n", name, cfg.Databases[name].Type)
	}
	for _, name := range sortedNames(cfg.Buckets) {
		_, _ = fmt.Fprintf(out, "  Bucket:          %s (%s)\n", name, cfg.Buckets[name].Type)
	}
	return nil
}

// configWarnings lists settings that are valid but probably unintended.
func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if !cfg.Auth.Enabled() {
		warnings = append(warnings, "No API key or JWT secret configured - the API is public")
	}
	if cfg.Auth.APIKey != "" && cfg.Auth.APIKeyHash != "" {
		warnings = append(warnings, "Both auth.api_key and auth.api_key_hash are set - the hash takes precedence")
	}
	if cfg.Presign.SecretKey == "" {
		warnings = append(warnings, "presign.secret_key not configured - presigned URLs are disabled")
	}
	if len(cfg.Databases) == 0 && len(cfg.Buckets) == 0 {
		warnings = append(warnings, "No databases or buckets configured")
	}
	return warnings
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
