package commands

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/credentials"
	"github.com/marmos91/cfmgr/internal/cli/prompt"
	"github.com/marmos91/cfmgr/internal/cli/timeutil"
	"github.com/marmos91/cfmgr/pkg/apiclient"
)

var loginName string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store credentials for a cfmgr server",
	Long: `Verify and store the credentials for a cfmgr server as a context.

The credential is an API key (auth.api_key) or a bearer token issued with
'cfmgr token issue'. Missing values are prompted for. Against a server
without authentication no credential is needed.

Examples:
  # Interactive login
  cfmgr login

  # Login with an API key
  cfmgr login --server http://localhost:8080 --api-key "$CFMGR_API_KEY"

  # Login with a bearer token under a custom context name
  cfmgr login --server https://cfmgr.example.com --token "$TOKEN" --name prod`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the credentials of the current context",
	Long: `Remove the API key or token stored for the current context. The
context and its server URL are kept.`,
	RunE: runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&loginName, "name", "", "Context name (default: derived from the server URL)")
}

// credential kinds offered by the login prompt.
const (
	credentialAPIKey = "api-key"
	credentialToken  = "token"
	credentialNone   = "none"
)

func runLogin(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	serverURL := cmdutil.Flags.ServerURL
	if serverURL == "" {
		def := "http://localhost:8080"
		if ctx, err := store.GetCurrentContext(); err == nil && ctx.ServerURL != "" {
			def = ctx.ServerURL
		}
		if serverURL, err = prompt.ServerURL(def); err != nil {
			return cmdutil.HandleAbort(err)
		}
	}
	serverURL, err = normalizeServerURL(serverURL)
	if err != nil {
		return err
	}

	apiKey, token := cmdutil.Flags.APIKey, cmdutil.Flags.Token
	if apiKey == "" && token == "" {
		apiKey, token, err = promptCredential()
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	fmt.Printf("Logging in to %s...\n", serverURL)
	ctx, err := verifyCredential(serverURL, apiKey, token)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	name := loginName
	if name == "" {
		name = credentials.GenerateContextName(serverURL)
	}
	if err := store.SetContext(name, ctx); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	if err := store.UseContext(name); err != nil {
		return fmt.Errorf("failed to set current context: %w", err)
	}

	cmdutil.PrintSuccess("Logged in successfully")
	fmt.Printf("Context: %s\n", name)
	if !ctx.ExpiresAt.IsZero() {
		fmt.Printf("Token expires: %s\n", timeutil.FormatExpiry(ctx.ExpiresAt, time.Now()))
	}
	fmt.Printf("Credentials saved to: %s\n", store.ConfigPath())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	name := store.GetCurrentContextName()
	if err := store.ClearCurrentContext(); err != nil {
		if errors.Is(err, credentials.ErrNoCurrentContext) {
			return credentials.ErrNotLoggedIn
		}
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Logged out of context '%s'", name))
	return nil
}

// normalizeServerURL defaults the scheme to http and drops a trailing
// slash.
func normalizeServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid server URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func promptCredential() (apiKey, token string, err error) {
	kind, err := prompt.Select("Credential", []prompt.SelectOption{
		{Label: "API key", Value: credentialAPIKey},
		{Label: "Bearer token", Value: credentialToken},
		{Label: "None (public server)", Value: credentialNone},
	})
	if err != nil {
		return "", "", err
	}

	switch kind {
	case credentialAPIKey:
		apiKey, err = prompt.Secret("API key")
	case credentialToken:
		token, err = prompt.Secret("Token")
	}
	return apiKey, token, err
}

// verifyCredential checks the credential against an authenticated route
// and returns the context to store.
func verifyCredential(serverURL, apiKey, token string) (*credentials.Context, error) {
	client := apiclient.New(serverURL)
	if apiKey != "" {
		client.SetAPIKey(apiKey)
	}
	if token != "" {
		client.SetToken(token)
	}

	if _, err := client.ListDatabases(); err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.IsAuthError() {
			return nil, fmt.Errorf("credentials rejected: %w", err)
		}
		return nil, err
	}

	ctx := &credentials.Context{ServerURL: serverURL, APIKey: apiKey, Token: token}
	if token != "" {
		ctx.ExpiresAt = tokenExpiry(token)
	}
	return ctx, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// server has just accepted the token.
func tokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
