package context

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/credentials"
	"github.com/marmos91/cfmgr/internal/cli/timeutil"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured contexts",
	Long: `List all configured server contexts.

The current context is marked with an asterisk (*).

Examples:
  # List contexts as table
  cfmgr context list

  # List as JSON
  cfmgr context list -o json`,
	RunE: runContextList,
}

// ContextInfo represents context information for output.
type ContextInfo struct {
	Name      string     `json:"name" yaml:"name"`
	Current   bool       `json:"current" yaml:"current"`
	ServerURL string     `json:"server_url" yaml:"server_url"`
	Auth      string     `json:"auth" yaml:"auth"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expires   string     `json:"-" yaml:"-"`
}

// ContextList is a list of contexts for table rendering.
type ContextList []ContextInfo

// Headers implements TableRenderer.
func (cl ContextList) Headers() []string {
	return []string{"", "NAME", "SERVER", "AUTH", "EXPIRES"}
}

// Rows implements TableRenderer.
func (cl ContextList) Rows() [][]string {
	rows := make([][]string, 0, len(cl))
	for _, c := range cl {
		current := ""
		if c.Current {
			current = "*"
		}
		rows = append(rows, []string{current, c.Name, c.ServerURL, c.Auth, c.Expires})
	}
	return rows
}

// authKind names the credential a context holds.
func authKind(ctx *credentials.Context) string {
	switch {
	case ctx.APIKey != "":
		return "api-key"
	case ctx.Token != "":
		return "token"
	default:
		return "none"
	}
}

func contextInfo(name, current string, ctx *credentials.Context, now time.Time) ContextInfo {
	info := ContextInfo{
		Name:      name,
		Current:   name == current,
		ServerURL: ctx.ServerURL,
		Auth:      authKind(ctx),
		Expires:   "-",
	}
	if ctx.Token != "" {
		info.Expires = timeutil.FormatExpiry(ctx.ExpiresAt, now)
		if !ctx.ExpiresAt.IsZero() {
			exp := ctx.ExpiresAt
			info.ExpiresAt = &exp
		}
	}
	return info
}

func listContexts(store *credentials.Store, now time.Time) ContextList {
	names := store.ListContexts()
	current := store.GetCurrentContextName()

	contexts := make(ContextList, 0, len(names))
	for _, name := range names {
		ctx, err := store.GetContext(name)
		if err != nil {
			continue
		}
		contexts = append(contexts, contextInfo(name, current, ctx, now))
	}
	return contexts
}

func runContextList(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	contexts := listContexts(store, time.Now())
	return cmdutil.PrintOutput(os.Stdout, contexts, len(contexts) == 0,
		"No contexts configured. Use 'cfmgr login --server <url>' to create one.", contexts)
}
