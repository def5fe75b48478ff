package db

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List databases",
	Long: `List the databases configured on the server.

Examples:
  # List databases
  cfmgr db list

  # As JSON
  cfmgr db list -o json`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	res, err := client.ListDatabases()
	if err != nil {
		return cmdutil.Describe(err)
	}

	table := output.NewTableData("NAME")
	for _, name := range res.Data.Databases {
		table.AddRow(name)
	}

	p, err := cmdutil.Printer(os.Stdout)
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable && len(res.Data.Databases) == 0 {
		p.Println("No databases configured.")
		return nil
	}
	return p.PrintResult(table, res, res.Meta)
}
