package db

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/internal/cli/prompt"
	"github.com/marmos91/cfmgr/pkg/apiclient"
	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

var (
	createSchemaFile  string
	createIfNotExists bool
	dropForce         bool
)

var tablesCmd = &cobra.Command{
	Use:     "tables",
	Aliases: []string{"table"},
	Short:   "Inspect and manage tables",
}

var tablesListCmd = &cobra.Command{
	Use:     "list <database>",
	Aliases: []string{"ls"},
	Short:   "List tables",
	Long: `List the user tables of a database. Internal tables are hidden.

Examples:
  cfmgr db tables list main`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: cmdutil.CompleteDatabases,
	RunE:              runTablesList,
}

var tablesInfoCmd = &cobra.Command{
	Use:               "info <database> <table>",
	Short:             "Show columns, indexes and row count of a table",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: cmdutil.CompleteDatabases,
	RunE:              runTablesInfo,
}

var tablesIndexesCmd = &cobra.Command{
	Use:               "indexes <database> <table>",
	Short:             "List the indexes of a table",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: cmdutil.CompleteDatabases,
	RunE:              runTablesIndexes,
}

var tablesCreateCmd = &cobra.Command{
	Use:   "create <database> <table>",
	Short: "Create a table from a JSON schema",
	Long: `Create a table from a JSON schema document.

Schema format:

  {
    "columns": [
      {"name": "id", "type": "INTEGER", "primary_key": true, "auto_increment": true},
      {"name": "email", "type": "TEXT", "nullable": false, "unique": true}
    ],
    "indexes": [{"name": "idx_email", "columns": ["email"]}]
  }

Examples:
  cfmgr db tables create main users --schema users.json
  cfmgr db tables create main users --schema users.json --if-not-exists`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: cmdutil.CompleteDatabases,
	RunE:              runTablesCreate,
}

var tablesDropCmd = &cobra.Command{
	Use:   "drop <database> <table>",
	Short: "Drop a table",
	Long: `Drop a table and all of its rows. The table name must be typed to
confirm unless --force is given.

Examples:
  cfmgr db tables drop main sessions
  cfmgr db tables drop main sessions --force`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: cmdutil.CompleteDatabases,
	RunE:              runTablesDrop,
}

func init() {
	tablesCreateCmd.Flags().StringVarP(&createSchemaFile, "schema", "s", "", "JSON schema file (- for stdin)")
	tablesCreateCmd.Flags().BoolVar(&createIfNotExists, "if-not-exists", false, "Do nothing if the table exists")
	_ = tablesCreateCmd.MarkFlagRequired("schema")

	tablesDropCmd.Flags().BoolVarP(&dropForce, "force", "f", false, "Skip confirmation")

	tablesCmd.AddCommand(tablesListCmd)
	tablesCmd.AddCommand(tablesInfoCmd)
	tablesCmd.AddCommand(tablesIndexesCmd)
	tablesCmd.AddCommand(tablesCreateCmd)
	tablesCmd.AddCommand(tablesDropCmd)
}

// tableList renders ListTables.
type tableList []rowstore.TableEntry

func (t tableList) Headers() []string { return []string{"NAME", "TYPE"} }

func (t tableList) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		rows = append(rows, []string{e.Name, e.Type})
	}
	return rows
}

// indexList renders GetTableIndexes.
type indexList []rowstore.IndexInfo

func (l indexList) Headers() []string { return []string{"NAME", "UNIQUE", "COLUMNS", "PARTIAL"} }

func (l indexList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, idx := range l {
		rows = append(rows, []string{
			idx.Name,
			cmdutil.BoolToYesNo(idx.Unique),
			strings.Join(idx.Columns, ", "),
			cmdutil.BoolToYesNo(idx.Partial),
		})
	}
	return rows
}

func runTablesList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return listTables(os.Stdout, client, args[0])
}

func listTables(w io.Writer, client *apiclient.Client, database string) error {
	res, err := client.ListTables(database)
	if err != nil {
		return cmdutil.Describe(err)
	}

	p, err := cmdutil.Printer(w)
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable && len(res.Data.Tables) == 0 {
		p.Println("No tables.")
		return nil
	}
	return p.PrintResult(tableList(res.Data.Tables), res, res.Meta)
}

func runTablesInfo(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return tableInfo(os.Stdout, client, args[0], args[1])
}

func tableInfo(w io.Writer, client *apiclient.Client, database, table string) error {
	res, err := client.GetTable(database, table)
	if err != nil {
		return cmdutil.Describe(err)
	}

	p, err := cmdutil.Printer(w)
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(res)
	}

	info := res.Data
	if err := output.KeyValues(w, [][2]string{
		{"Name", info.Name},
		{"Type", info.Type},
		{"Rows", strconv.FormatInt(info.RowCount, 10)},
	}); err != nil {
		return err
	}

	p.Println("\nColumns:")
	if err := output.PrintTable(w, output.RowsTable(info.Columns)); err != nil {
		return err
	}
	if len(info.Indexes) > 0 {
		p.Println("\nIndexes:")
		if err := output.PrintTable(w, output.RowsTable(info.Indexes)); err != nil {
			return err
		}
	}
	if info.SQL != nil {
		p.Printf("\n%s\n", *info.SQL)
	}
	return nil
}

func runTablesIndexes(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	res, err := client.GetTableIndexes(args[0], args[1])
	if err != nil {
		return cmdutil.Describe(err)
	}

	p, err := cmdutil.Printer(os.Stdout)
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable && len(res.Data.Indexes) == 0 {
		p.Printf("Table '%s' has no indexes.\n", res.Data.Table)
		return nil
	}
	return p.PrintResult(indexList(res.Data.Indexes), res, res.Meta)
}

// parseSchema decodes and validates a table schema document.
func parseSchema(data []byte) (rowstore.TableSchema, error) {
	var schema rowstore.TableSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return schema, fmt.Errorf("invalid schema: %w", err)
	}
	if len(schema.Columns) == 0 {
		return schema, fmt.Errorf("schema defines no columns")
	}
	return schema, nil
}

func runTablesCreate(cmd *cobra.Command, args []string) error {
	data, err := cmdutil.ReadInput(createSchemaFile)
	if err != nil {
		return err
	}
	schema, err := parseSchema(data)
	if err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return createTable(os.Stdout, client, args[0], apiclient.CreateTableRequest{
		Name:        args[1],
		Schema:      schema,
		IfNotExists: createIfNotExists,
	})
}

func createTable(w io.Writer, client *apiclient.Client, database string, req apiclient.CreateTableRequest) error {
	res, err := client.CreateTable(database, req)
	if err != nil {
		return cmdutil.Describe(err)
	}
	return cmdutil.PrintEnvelopeWithSuccess(w, res, createMessage(res))
}

func createMessage(res *envelope.Result[rowstore.CreateTableData]) string {
	d := res.Data
	msg := fmt.Sprintf("Table '%s' created", d.Table)
	if len(d.Indexes) > 0 {
		msg += fmt.Sprintf(" with %d index(es)", len(d.Indexes))
	}
	return msg
}

func runTablesDrop(cmd *cobra.Command, args []string) error {
	database, table := args[0], args[1]

	confirmed, err := prompt.ConfirmDrop("table", table, dropForce)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	res, err := client.DropTable(database, table)
	if err != nil {
		return cmdutil.Describe(err)
	}
	return cmdutil.PrintEnvelopeWithSuccess(os.Stdout, res, fmt.Sprintf("Table '%s' dropped", res.Data.Table))
}
