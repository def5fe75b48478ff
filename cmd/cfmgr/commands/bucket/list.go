package bucket

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List buckets",
	Long: `List the buckets configured on the server.

Examples:
  cfmgr bucket list
  cfmgr bucket list -o json`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	res, err := client.ListBuckets()
	if err != nil {
		return cmdutil.Describe(err)
	}

	table := output.NewTableData("NAME")
	for _, name := range res.Data.Buckets {
		table.AddRow(name)
	}

	p, err := cmdutil.Printer(os.Stdout)
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable && len(res.Data.Buckets) == 0 {
		p.Println("No buckets configured.")
		return nil
	}
	return p.PrintResult(table, res, res.Meta)
}
