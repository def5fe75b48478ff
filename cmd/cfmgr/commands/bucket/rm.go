package bucket

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/prompt"
)

var rmForce bool

var rmCmd = &cobra.Command{
	Use:     "rm <bucket> <key>...",
	Aliases: []string{"delete"},
	Short:   "Delete objects",
	Long: `Delete one or more objects. Deleting a missing key succeeds.

Examples:
  cfmgr bucket rm assets images/old.png
  cfmgr bucket rm assets tmp/a tmp/b --force`,
	Args:              cobra.MinimumNArgs(2),
	ValidArgsFunction: cmdutil.CompleteBuckets,
	RunE:              runRm,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Skip confirmation")
}

func runRm(cmd *cobra.Command, args []string) error {
	bucket, keys := args[0], args[1:]

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	if len(keys) == 1 {
		return cmdutil.RunDeleteWithConfirmation("Object", bucket+"/"+keys[0], rmForce, func() error {
			_, err := client.DeleteObject(bucket, keys[0])
			return cmdutil.Describe(err)
		})
	}

	confirmed, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Delete %d objects from '%s' (%s)?", len(keys), bucket, strings.Join(keys, ", ")), rmForce)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(bucket, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, cmdutil.Describe(err))
		}
	}
	cmdutil.PrintSuccess(fmt.Sprintf("%d objects deleted from '%s'", len(keys), bucket))
	return nil
}
