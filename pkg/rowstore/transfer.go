package rowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

// Supported import/export formats.
const (
	FormatJSON = "json"
	FormatSQL  = "sql"
)

// ExportOptions are the arguments of ExportData. A nil Tables exports every
// table; a nil IncludeSchema means true.
type ExportOptions struct {
	Tables        []string `json:"tables,omitempty"`
	Format        string   `json:"format"`
	IncludeSchema *bool    `json:"include_schema,omitempty"`
}

// ExportData is the payload of ExportData. Its JSON form depends on the
// format: JSON exports carry a table-to-rows map, SQL exports carry the
// script and the list of exported tables.
type ExportData struct {
	Format     string
	Tables     map[string][]Row
	Content    string
	TableNames []string
	RowCount   int
}

// MarshalJSON implements json.Marshaler.
func (d ExportData) MarshalJSON() ([]byte, error) {
	if d.Format == FormatJSON {
		tables := d.Tables
		if tables == nil {
			tables = map[string][]Row{}
		}
		return json.Marshal(struct {
			Format   string           `json:"format"`
			Tables   map[string][]Row `json:"tables"`
			RowCount int              `json:"row_count"`
		}{d.Format, tables, d.RowCount})
	}
	names := d.TableNames
	if names == nil {
		names = []string{}
	}
	return json.Marshal(struct {
		Format   string   `json:"format"`
		Content  string   `json:"content"`
		Tables   []string `json:"tables"`
		RowCount int      `json:"row_count"`
	}{d.Format, d.Content, names, d.RowCount})
}

// ImportOptions are the arguments of ImportData. Table is required for
// JSON imports; Truncate empties it in the same transaction first.
type ImportOptions struct {
	Format   string `json:"format" validate:"required"`
	Content  string `json:"content"`
	Table    string `json:"table,omitempty"`
	Truncate bool   `json:"truncate,omitempty"`
}

// ImportData is the payload of ImportData.
type ImportData struct {
	Format       string  `json:"format"`
	RowsImported int64   `json:"rows_imported"`
	DurationMs   float64 `json:"duration_ms"`
}

// ExportData dumps tables as a JSON document or as a SQL script.
func (m *Manager) ExportData(ctx context.Context, database string, opts ExportOptions) (*envelope.Result[ExportData], error) {
	if _, err := m.lookup(database); err != nil {
		return nil, err
	}
	start := time.Now()

	format := strings.ToLower(opts.Format)
	if format != FormatJSON && format != FormatSQL {
		return envelope.Fail[ExportData](envelope.CodeInvalidFormat,
			fmt.Sprintf("Unsupported export format: %s", opts.Format), nil, envelope.Timed(start)), nil
	}

	tables := opts.Tables
	for _, t := range tables {
		if err := ValidateTableRef(t); err != nil {
			return nil, err
		}
	}
	if tables == nil {
		list, err := m.ListTables(ctx, database)
		if err != nil {
			return nil, err
		}
		if !list.Success {
			return envelope.Forward[ExportData](list), nil
		}
		for _, t := range list.Data.Tables {
			tables = append(tables, t.Name)
		}
	}

	includeSchema := opts.IncludeSchema == nil || *opts.IncludeSchema
	out := ExportData{Format: format, TableNames: tables}
	if format == FormatJSON {
		out.Tables = make(map[string][]Row, len(tables))
	}
	var script []string

	for _, table := range tables {
		if format == FormatSQL && includeSchema {
			schema, err := m.Query(ctx, database, tableSQLQuery, QueryOptions{Params: Positional(table)})
			if err != nil {
				return nil, err
			}
			if !schema.Success {
				return envelope.Forward[ExportData](schema), nil
			}
			if len(schema.Data.Results) > 0 {
				if ddl := stringColumn(schema.Data.Results[0], "sql"); ddl != "" {
					script = append(script, ddl+";")
				}
			}
		}

		rows, err := m.Query(ctx, database, "SELECT * FROM "+QuoteIdentifier(table), QueryOptions{})
		if err != nil {
			return nil, err
		}
		if !rows.Success {
			return envelope.Forward[ExportData](rows), nil
		}

		out.RowCount += len(rows.Data.Results)
		if format == FormatJSON {
			out.Tables[table] = rows.Data.Results
			continue
		}
		for _, row := range rows.Data.Results {
			script = append(script, BuildInsert(table, row))
		}
	}

	out.Content = strings.Join(script, "\n")
	return envelope.OK(out, envelope.Timed(start)), nil
}

// ImportData loads a SQL script or a JSON document in one transaction.
func (m *Manager) ImportData(ctx context.Context, database string, opts ImportOptions) (*envelope.Result[ImportData], error) {
	if _, err := m.lookup(database); err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		statements []Statement
		skip       int // leading statements not counted as imported rows
	)

	switch strings.ToLower(opts.Format) {
	case FormatSQL:
		for _, s := range SplitStatements(opts.Content) {
			statements = append(statements, Statement{SQL: s})
		}

	case FormatJSON:
		if opts.Table == "" {
			return envelope.Fail[ImportData](envelope.CodeMissingParameter,
				"Table name is required for JSON import", nil, envelope.Timed(start)), nil
		}
		if err := ValidateIdentifier("table", opts.Table); err != nil {
			return nil, err
		}

		rows, perr := parseJSONRows(opts.Content)
		if perr != nil {
			return envelope.Fail[ImportData](envelope.CodeInvalidJSON, perr.Error(), nil, envelope.Timed(start)), nil
		}

		if opts.Truncate {
			statements = append(statements, Statement{SQL: "DELETE FROM " + QuoteIdentifier(opts.Table)})
			skip = 1
		}
		for _, row := range rows {
			stmt, err := insertStatement(opts.Table, row)
			if err != nil {
				return nil, err
			}
			statements = append(statements, stmt)
		}

	default:
		return envelope.Fail[ImportData](envelope.CodeInvalidFormat,
			fmt.Sprintf("Unsupported import format: %s", opts.Format), nil, envelope.Timed(start)), nil
	}

	res, err := m.Batch(ctx, database, statements)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return envelope.Forward[ImportData](res), nil
	}

	var imported int64
	for i, r := range res.Data.Results {
		if i >= skip {
			imported += r.Meta.Changes
		}
	}

	meta := envelope.Timed(start)
	return envelope.OK(ImportData{
		Format:       strings.ToLower(opts.Format),
		RowsImported: imported,
		DurationMs:   meta.DurationMs,
	}, meta), nil
}

func insertStatement(table string, row Row) (Statement, error) {
	if len(row.Columns) == 0 {
		return Statement{SQL: "INSERT INTO " + QuoteIdentifier(table) + " DEFAULT VALUES"}, nil
	}
	sql, err := BuildParameterizedInsert(table, row.Columns)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql, Params: Positional(row.Values...)}, nil
}

// parseJSONRows accepts a single object or an array of objects. Keys keep
// their document order so generated column lists are deterministic.
func parseJSONRows(content string) ([]Row, error) {
	if !gjson.Valid(content) {
		return nil, fmt.Errorf("invalid JSON content")
	}

	root := gjson.Parse(content)
	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.IsObject():
		items = []gjson.Result{root}
	default:
		return nil, fmt.Errorf("JSON content must be an object or an array of objects")
	}

	rows := make([]Row, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, fmt.Errorf("row %d is not a JSON object", i)
		}
		var row Row
		item.ForEach(func(k, v gjson.Result) bool {
			row.Columns = append(row.Columns, k.String())
			row.Values = append(row.Values, jsonValue(v))
			return true
		})
		rows = append(rows, row)
	}
	return rows, nil
}

func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return int64(0)
	case gjson.True:
		return int64(1)
	case gjson.Number:
		if !strings.ContainsAny(v.Raw, ".eE") {
			if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return n
			}
		}
		return v.Float()
	case gjson.String:
		return v.String()
	default:
		// Nested objects and arrays are stored as their JSON text.
		return v.Raw
	}
}
