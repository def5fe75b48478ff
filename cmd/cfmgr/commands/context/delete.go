package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/credentials"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a context",
	Long: `Delete a saved context and its credential. Deleting the current
context leaves none selected until 'cfmgr context use' or 'cfmgr login'.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeContextNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return fmt.Errorf("failed to initialize credential store: %w", err)
		}
		name := args[0]
		if _, err := store.GetContext(name); errors.Is(err, credentials.ErrContextNotFound) {
			return fmt.Errorf("context '%s' not found", name)
		}
		return cmdutil.RunDeleteWithConfirmation("Context", name, deleteForce, func() error {
			return store.DeleteContext(name)
		})
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation")
}
