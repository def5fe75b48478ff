// Package context holds "cfmgr context": the saved server URL and
// credential pairs the client commands pick from.
package context

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/internal/cli/credentials"
)

// Cmd is "cfmgr context".
var Cmd = &cobra.Command{
	Use:     "context",
	Aliases: []string{"ctx"},
	Short:   "Manage server contexts",
	Long: `Manage the saved server contexts.

A context pairs a server URL with the credential used for it. 'cfmgr login'
creates contexts; the commands below list, switch, rename and delete them.`,
}

func init() {
	Cmd.AddCommand(listCmd, useCmd, currentCmd, deleteCmd, renameCmd)
}

// completeContextNames completes the first argument with saved context names.
func completeContextNames(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	store, err := credentials.NewStore()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, n := range store.ListContexts() {
		if strings.HasPrefix(n, toComplete) {
			names = append(names, n)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
