package token

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/internal/cli/timeutil"
	"github.com/marmos91/cfmgr/pkg/api/auth"
	"github.com/marmos91/cfmgr/pkg/config"
)

var (
	issueSubject  string
	issueReadOnly bool
	issueTTL      time.Duration
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign a bearer token",
	Long: `Sign a bearer token with auth.jwt_secret from the configuration file.

Read-only tokens may only send GET and HEAD requests.

Examples:
  # Token valid for auth.token_duration
  cfmgr token issue --subject ci

  # Read-only token valid for one hour
  cfmgr token issue --subject dashboard --read-only --ttl 1h

  # Print only the token
  cfmgr token issue --subject ci -o json | jq -r .access_token`,
	RunE: runIssue,
}

func init() {
	issueCmd.Flags().StringVar(&issueSubject, "subject", "", "Token subject (required)")
	issueCmd.Flags().BoolVar(&issueReadOnly, "read-only", false, "Restrict the token to reads")
	issueCmd.Flags().DurationVar(&issueTTL, "ttl", 0, "Token lifetime (default: auth.token_duration)")
	_ = issueCmd.MarkFlagRequired("subject")
}

func runIssue(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(cmdutil.Flags.ConfigFile)
	if err != nil {
		return err
	}

	scope := auth.ScopeReadWrite
	if issueReadOnly {
		scope = auth.ScopeReadOnly
	}

	token, err := issueToken(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenDuration, issueSubject, scope, issueTTL)
	if err != nil {
		return err
	}

	return cmdutil.PrintResource(os.Stdout, token, tokenTable(token, time.Now()))
}

// issueToken signs a token with the configured secret.
func issueToken(secret, issuer string, duration time.Duration, subject string, scope auth.Scope, ttl time.Duration) (*auth.Token, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is not configured")
	}
	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret:        secret,
		Issuer:        issuer,
		TokenDuration: duration,
	})
	if err != nil {
		return nil, err
	}
	return svc.Issue(subject, scope, ttl)
}

func tokenTable(t *auth.Token, now time.Time) *output.TableData {
	table := output.NewTableData("FIELD", "VALUE")
	table.AddRow("Subject", t.Subject)
	table.AddRow("Scope", string(t.Scope))
	table.AddRow("Expires", timeutil.FormatExpiry(t.ExpiresAt, now))
	table.AddRow("Token", t.AccessToken)
	return table
}
