package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

// DatabaseList is the payload of ListDatabases.
type DatabaseList struct {
	Databases []string `json:"databases"`
}

// QueryRequest is the body of a read query.
type QueryRequest struct {
	SQL    string          `json:"sql"`
	Params rowstore.Params `json:"params"`
	Limit  *int            `json:"limit,omitempty"`
	Offset *int            `json:"offset,omitempty"`
}

// ExecuteRequest is the body of a write statement.
type ExecuteRequest struct {
	SQL    string          `json:"sql"`
	Params rowstore.Params `json:"params"`
}

// CreateTableRequest is the body of CreateTable.
type CreateTableRequest struct {
	Name        string               `json:"name"`
	Schema      rowstore.TableSchema `json:"schema"`
	IfNotExists bool                 `json:"if_not_exists,omitempty"`
}

// ExportResult is the payload of Export. Tables holds a table-to-rows
// object for JSON exports and the list of exported tables for SQL exports.
type ExportResult struct {
	Format   string          `json:"format"`
	Content  string          `json:"content,omitempty"`
	Tables   json.RawMessage `json:"tables"`
	RowCount int             `json:"row_count"`
}

// TableRows decodes the rows of a JSON export.
func (e *ExportResult) TableRows() (map[string][]rowstore.Row, error) {
	if e.Format != rowstore.FormatJSON {
		return nil, fmt.Errorf("export format %q carries no rows", e.Format)
	}
	var out map[string][]rowstore.Row
	if err := json.Unmarshal(e.Tables, &out); err != nil {
		return nil, fmt.Errorf("failed to decode exported rows: %w", err)
	}
	return out, nil
}

// TableNames returns the exported table names of a SQL export.
func (e *ExportResult) TableNames() ([]string, error) {
	if e.Format == rowstore.FormatJSON {
		rows, err := e.TableRows()
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(rows))
		for name := range rows {
			names = append(names, name)
		}
		return names, nil
	}
	var names []string
	if err := json.Unmarshal(e.Tables, &names); err != nil {
		return nil, fmt.Errorf("failed to decode exported tables: %w", err)
	}
	return names, nil
}

// ListDatabases lists the configured row-store instances.
func (c *Client) ListDatabases() (*envelope.Result[DatabaseList], error) {
	return call[DatabaseList](c, http.MethodGet, resourcePath("d1", "databases"), nil)
}

// Query runs a read statement.
func (c *Client) Query(database string, req QueryRequest) (*envelope.Result[rowstore.QueryData], error) {
	return call[rowstore.QueryData](c, http.MethodPost, resourcePath("d1", database, "query"), req)
}

// Execute runs a write statement.
func (c *Client) Execute(database, sql string, params rowstore.Params) (*envelope.Result[rowstore.ExecuteData], error) {
	return call[rowstore.ExecuteData](c, http.MethodPost, resourcePath("d1", database, "execute"),
		ExecuteRequest{SQL: sql, Params: params})
}

// Batch runs statements in one transaction.
func (c *Client) Batch(database string, statements []rowstore.Statement) (*envelope.Result[rowstore.BatchData], error) {
	body := struct {
		Statements []rowstore.Statement `json:"statements"`
	}{statements}
	return call[rowstore.BatchData](c, http.MethodPost, resourcePath("d1", database, "batch"), body)
}

// ListTables lists the user tables of a database.
func (c *Client) ListTables(database string) (*envelope.Result[rowstore.TablesData], error) {
	return call[rowstore.TablesData](c, http.MethodGet, resourcePath("d1", database, "tables"), nil)
}

// CreateTable creates a table from a schema.
func (c *Client) CreateTable(database string, req CreateTableRequest) (*envelope.Result[rowstore.CreateTableData], error) {
	return call[rowstore.CreateTableData](c, http.MethodPost, resourcePath("d1", database, "tables"), req)
}

// GetTable describes a table.
func (c *Client) GetTable(database, table string) (*envelope.Result[rowstore.TableInfo], error) {
	return call[rowstore.TableInfo](c, http.MethodGet, resourcePath("d1", database, "tables", table), nil)
}

// GetTableIndexes lists the indexes of a table.
func (c *Client) GetTableIndexes(database, table string) (*envelope.Result[rowstore.TableIndexes], error) {
	return call[rowstore.TableIndexes](c, http.MethodGet, resourcePath("d1", database, "tables", table, "indexes"), nil)
}

// DropTable drops a table.
func (c *Client) DropTable(database, table string) (*envelope.Result[rowstore.DeleteTableData], error) {
	return call[rowstore.DeleteTableData](c, http.MethodDelete, resourcePath("d1", database, "tables", table), nil)
}

// Export dumps tables as JSON or SQL.
func (c *Client) Export(database string, opts rowstore.ExportOptions) (*envelope.Result[ExportResult], error) {
	return call[ExportResult](c, http.MethodPost, resourcePath("d1", database, "export"), opts)
}

// Import loads a JSON document or SQL script.
func (c *Client) Import(database string, opts rowstore.ImportOptions) (*envelope.Result[rowstore.ImportData], error) {
	return call[rowstore.ImportData](c, http.MethodPost, resourcePath("d1", database, "import"), opts)
}
