package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/credentials"
)

var renameCmd = &cobra.Command{
	Use:   "rename <old-name> <new-name>",
	Short: "Rename a context",
	Long: `Rename an existing server context.

Examples:
  # Rename context from "localhost-8080" to "dev"
  cfmgr context rename localhost-8080 dev`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeContextNames,
	RunE:              runContextRename,
}

func runContextRename(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	if err := renameContext(store, args[0], args[1]); err != nil {
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Context '%s' renamed to '%s'", args[0], args[1]))
	return nil
}

// renameContext moves a context to a new name and keeps it current if it
// was.
func renameContext(store *credentials.Store, oldName, newName string) error {
	err := store.RenameContext(oldName, newName)
	switch {
	case errors.Is(err, credentials.ErrContextNotFound):
		return fmt.Errorf("context '%s' not found", oldName)
	case errors.Is(err, credentials.ErrContextExists):
		return fmt.Errorf("context '%s' already exists", newName)
	}
	return err
}
