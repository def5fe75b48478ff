package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/credentials"
	"github.com/marmos91/cfmgr/internal/cli/prompt"
)

var useCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Switch to a different context",
	Long: `Switch the current context. Without a name the contexts are offered
in a selection list.

Examples:
  # Switch to the "prod" context
  cfmgr context use prod

  # Pick interactively
  cfmgr context use`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeContextNames,
	RunE:              runContextUse,
}

func runContextUse(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	var name string
	if len(args) == 1 {
		name = args[0]
	} else {
		names := store.ListContexts()
		if len(names) == 0 {
			return fmt.Errorf("no contexts configured. Use 'cfmgr login --server <url>' to create one")
		}
		options := make([]prompt.SelectOption, 0, len(names))
		for _, n := range names {
			ctx, _ := store.GetContext(n)
			options = append(options, prompt.SelectOption{Label: n, Value: n, Description: ctx.ServerURL})
		}
		if name, err = prompt.Select("Select context", options); err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	if err := store.UseContext(name); err != nil {
		if errors.Is(err, credentials.ErrContextNotFound) {
			return fmt.Errorf("context '%s' not found", name)
		}
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Switched to context '%s'", name))
	return nil
}
