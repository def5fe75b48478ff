package db

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/pkg/apiclient"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

var (
	queryParams     []string
	queryParamsJSON string
	queryLimit      int
	queryOffset     int
	queryFile       string

	execParams     []string
	execParamsJSON string
	execFile       string
)

var queryCmd = &cobra.Command{
	Use:   "query <database> [sql]",
	Short: "Run a SELECT and print the rows",
	Long: `Run a read statement and print the returned rows.

Parameters are bound positionally with repeated --param flags (values that
parse as JSON keep their type) or as a JSON array or object with --params.

Examples:
  # Query with a positional parameter
  cfmgr db query main "SELECT * FROM users WHERE id = ?" --param 42

  # Named parameters
  cfmgr db query main "SELECT * FROM users WHERE email = :email" --params '{"email":"a@b.c"}'

  # Page through results
  cfmgr db query main "SELECT * FROM events" --limit 100 --offset 200

  # Read the statement from a file
  cfmgr db query main --file report.sql`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: cmdutil.CompleteDatabases,
	RunE:              runQuery,
}

var execCmd = &cobra.Command{
	Use:     "exec <database> [sql]",
	Aliases: []string{"execute"},
	Short:   "Run a write statement",
	Long: `Run a single INSERT, UPDATE, DELETE or DDL statement.

Examples:
  # Insert a row
  cfmgr db exec main "INSERT INTO users (name) VALUES (?)" --param alice

  # Run a statement from stdin
  echo "DELETE FROM sessions" | cfmgr db exec main --file -`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: cmdutil.CompleteDatabases,
	RunE:              runExec,
}

func init() {
	queryCmd.Flags().StringArrayVarP(&queryParams, "param", "p", nil, "Positional parameter (repeatable)")
	queryCmd.Flags().StringVar(&queryParamsJSON, "params", "", "Parameters as a JSON array or object")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Maximum number of rows")
	queryCmd.Flags().IntVar(&queryOffset, "offset", 0, "Number of rows to skip")
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the statement from a file (- for stdin)")

	execCmd.Flags().StringArrayVarP(&execParams, "param", "p", nil, "Positional parameter (repeatable)")
	execCmd.Flags().StringVar(&execParamsJSON, "params", "", "Parameters as a JSON array or object")
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "Read the statement from a file (- for stdin)")
}

// statementArg returns the SQL from the second argument or from file.
func statementArg(args []string, file string) (string, error) {
	switch {
	case len(args) == 2 && file != "":
		return "", fmt.Errorf("give the statement as an argument or with --file, not both")
	case len(args) == 2:
		return args[1], nil
	case file != "":
		data, err := cmdutil.ReadInput(file)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("missing SQL statement")
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	sql, err := statementArg(args, queryFile)
	if err != nil {
		return err
	}
	params, err := parseParams(queryParams, queryParamsJSON)
	if err != nil {
		return err
	}

	req := apiclient.QueryRequest{SQL: sql, Params: params}
	if cmd.Flags().Changed("limit") {
		req.Limit = &queryLimit
	}
	if cmd.Flags().Changed("offset") {
		req.Offset = &queryOffset
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return query(os.Stdout, client, args[0], req)
}

func query(w io.Writer, client *apiclient.Client, database string, req apiclient.QueryRequest) error {
	res, err := client.Query(database, req)
	if err != nil {
		return cmdutil.Describe(err)
	}

	p, err := cmdutil.Printer(w)
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable && len(res.Data.Results) == 0 {
		p.Println("No rows.")
		if res.Meta != nil {
			p.Println(output.Summary(res.Meta))
		}
		return nil
	}
	return p.PrintResult(output.RowsTable(res.Data.Results), res, res.Meta)
}

func runExec(cmd *cobra.Command, args []string) error {
	sql, err := statementArg(args, execFile)
	if err != nil {
		return err
	}
	params, err := parseParams(execParams, execParamsJSON)
	if err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return execute(os.Stdout, client, args[0], sql, params)
}

func execute(w io.Writer, client *apiclient.Client, database, sql string, params rowstore.Params) error {
	res, err := client.Execute(database, sql, params)
	if err != nil {
		return cmdutil.Describe(err)
	}

	m := res.Data.Meta
	msg := fmt.Sprintf("%d row(s) changed", m.Changes)
	if m.LastRowID != 0 {
		msg += fmt.Sprintf(", last row id %d", m.LastRowID)
	}
	return cmdutil.PrintEnvelopeWithSuccess(w, res, msg)
}
