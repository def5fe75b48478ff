package context

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/credentials"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current context",
	Long: `Show the context the client commands use, with its server, credential
kind and token expiry.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return fmt.Errorf("failed to initialize credential store: %w", err)
		}
		info, err := currentContext(store, time.Now())
		if err != nil {
			return err
		}
		return cmdutil.PrintResource(os.Stdout, info, ContextList{info})
	},
}

func currentContext(store *credentials.Store, now time.Time) (ContextInfo, error) {
	name := store.GetCurrentContextName()
	if name == "" {
		return ContextInfo{}, fmt.Errorf("no current context set\n\nLog in to a server first:\n  cfmgr login --server http://localhost:8080")
	}
	ctx, err := store.GetContext(name)
	if err != nil {
		return ContextInfo{}, err
	}
	return contextInfo(name, name, ctx, now), nil
}
