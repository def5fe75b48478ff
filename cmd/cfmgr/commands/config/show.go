package config

import (
	"maps"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/pkg/config"
)

const redacted = "********"

var showSecrets bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective cfmgr configuration, with defaults applied and
environment overrides merged. Secrets are masked unless --show-secrets is
given.

Outputs YAML unless -o json is given.

Examples:
  # Show default config as YAML
  cfmgr config show

  # Show as JSON
  cfmgr config show -o json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secrets in clear text")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(cmdutil.Flags.ConfigFile)
	if err != nil {
		return err
	}

	if !showSecrets {
		redactSecrets(cfg)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		// yaml tags carry the file's key names; Config has no json tags.
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
}

// redactSecrets masks every credential in cfg.
func redactSecrets(cfg *config.Config) {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&cfg.Auth.APIKey)
	mask(&cfg.Auth.APIKeyHash)
	mask(&cfg.Auth.JWTSecret)
	mask(&cfg.Presign.SecretKey)

	for name, db := range cfg.Databases {
		mask(&db.Postgres.Password)
		cfg.Databases[name] = db
	}

	for name, b := range cfg.Buckets {
		if len(b.S3) > 0 {
			opts := maps.Clone(b.S3)
			for k := range opts {
				if strings.Contains(k, "secret") || strings.Contains(k, "session_token") {
					opts[k] = redacted
				}
			}
			b.S3 = opts
		}
		cfg.Buckets[name] = b
	}
}
