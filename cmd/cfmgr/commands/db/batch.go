package db

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/pkg/apiclient"
	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

var batchFile string

var batchCmd = &cobra.Command{
	Use:   "batch <database>",
	Short: "Run several statements in one transaction",
	Long: `Run a list of statements atomically. Either every statement commits or
none does.

The input is a JSON array of statements:

  [
    {"sql": "INSERT INTO users (name) VALUES (?)", "params": ["alice"]},
    {"sql": "UPDATE counters SET n = n + 1 WHERE id = :id", "params": {"id": 1}}
  ]

Examples:
  # Run statements from a file
  cfmgr db batch main --file statements.json

  # From stdin
  cat statements.json | cfmgr db batch main --file -`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: cmdutil.CompleteDatabases,
	RunE:              runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "JSON file with the statements (- for stdin)")
	_ = batchCmd.MarkFlagRequired("file")
}

// parseStatements decodes a JSON array of statements.
func parseStatements(data []byte) ([]rowstore.Statement, error) {
	var statements []rowstore.Statement
	if err := json.Unmarshal(data, &statements); err != nil {
		return nil, fmt.Errorf("invalid statements file: %w", err)
	}
	if len(statements) == 0 {
		return nil, fmt.Errorf("statements file contains no statements")
	}
	for i, s := range statements {
		if s.SQL == "" {
			return nil, fmt.Errorf("statement %d has no sql", i+1)
		}
	}
	return statements, nil
}

// batchTable renders the per-statement results of a batch.
type batchTable []rowstore.StatementResult

func (b batchTable) Headers() []string {
	return []string{"#", "SUCCESS", "ROWS WRITTEN", "CHANGES", "LAST ROW ID"}
}

func (b batchTable) Rows() [][]string {
	rows := make([][]string, 0, len(b))
	for i, r := range b {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			cmdutil.BoolToYesNo(r.Success),
			strconv.FormatInt(r.Meta.RowsWritten, 10),
			strconv.FormatInt(r.Meta.Changes, 10),
			strconv.FormatInt(r.Meta.LastRowID, 10),
		})
	}
	return rows
}

func runBatch(cmd *cobra.Command, args []string) error {
	data, err := cmdutil.ReadInput(batchFile)
	if err != nil {
		return err
	}
	statements, err := parseStatements(data)
	if err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return batch(os.Stdout, client, args[0], statements)
}

func batch(w io.Writer, client *apiclient.Client, database string, statements []rowstore.Statement) error {
	res, err := client.Batch(database, statements)
	if err != nil {
		return cmdutil.Describe(err)
	}
	return printBatch(w, res)
}

func printBatch(w io.Writer, res *envelope.Result[rowstore.BatchData]) error {
	p, err := cmdutil.Printer(w)
	if err != nil {
		return err
	}
	if err := p.PrintResult(batchTable(res.Data.Results), res, nil); err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		m := res.Data.Meta
		p.Printf("\n%d statement(s), %d row(s) written (%.2f ms)\n", m.TotalStatements, m.TotalRowsWritten, m.DurationMs)
	}
	return nil
}
