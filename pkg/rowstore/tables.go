package rowstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

const listTablesSQL = `SELECT name, type, sql FROM sqlite_master ` +
	`WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`

const tableSQLQuery = `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`

// TableEntry is one row of ListTables.
type TableEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	SQL  string `json:"sql"`
}

// TablesData is the payload of ListTables.
type TablesData struct {
	Tables []TableEntry `json:"tables"`
}

// CreateTableData is the payload of CreateTable.
type CreateTableData struct {
	Table   string   `json:"table"`
	Created bool     `json:"created"`
	SQL     string   `json:"sql"`
	Indexes []string `json:"indexes,omitempty"`
}

// TableInfo is the payload of GetTableInfo.
type TableInfo struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Columns  []Row   `json:"columns"`
	Indexes  []Row   `json:"indexes"`
	RowCount int64   `json:"row_count"`
	SQL      *string `json:"sql"`
}

// IndexInfo describes one index of a table.
type IndexInfo struct {
	Name    string   `json:"name"`
	Unique  bool     `json:"unique"`
	Columns []string `json:"columns"`
	Partial bool     `json:"partial"`
}

// TableIndexes is the payload of GetTableIndexes.
type TableIndexes struct {
	Table   string      `json:"table"`
	Indexes []IndexInfo `json:"indexes"`
}

// DeleteTableData is the payload of DeleteTable.
type DeleteTableData struct {
	Table   string `json:"table"`
	Deleted bool   `json:"deleted"`
}

// ListTables lists user tables from the catalog, ordered by name.
func (m *Manager) ListTables(ctx context.Context, database string) (*envelope.Result[TablesData], error) {
	res, err := m.Query(ctx, database, listTablesSQL, QueryOptions{})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return envelope.Forward[TablesData](res), nil
	}

	tables := make([]TableEntry, 0, len(res.Data.Results))
	for _, row := range res.Data.Results {
		tables = append(tables, TableEntry{
			Name: stringColumn(row, "name"),
			Type: stringColumn(row, "type"),
			SQL:  stringColumn(row, "sql"),
		})
	}

	meta := *res.Meta
	meta.Count = envelope.Int(len(tables))
	return envelope.OK(TablesData{Tables: tables}, &meta), nil
}

// CreateTable creates table name from schema, then creates each declared
// index in order. An index failure is returned as the result; the table
// itself stays created.
func (m *Manager) CreateTable(ctx context.Context, database, name string, schema TableSchema, ifNotExists bool) (*envelope.Result[CreateTableData], error) {
	if _, err := m.lookup(database); err != nil {
		return nil, err
	}
	sql, err := BuildCreateTable(name, schema, ifNotExists)
	if err != nil {
		return nil, err
	}
	indexSQL := make([]string, len(schema.Indexes))
	for i, idx := range schema.Indexes {
		if indexSQL[i], err = BuildCreateIndex(name, idx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	res, err := m.Execute(ctx, database, sql, Params{})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return envelope.Forward[CreateTableData](res), nil
	}

	created := make([]string, 0, len(indexSQL))
	for i, stmt := range indexSQL {
		ires, err := m.Execute(ctx, database, stmt, Params{})
		if err != nil {
			return nil, err
		}
		if !ires.Success {
			return envelope.Forward[CreateTableData](ires), nil
		}
		created = append(created, schema.Indexes[i].Name)
	}

	return envelope.OK(CreateTableData{
		Table:   name,
		Created: true,
		SQL:     sql,
		Indexes: created,
	}, envelope.Timed(start)), nil
}

// GetTableInfo composes column info, index list, creation SQL and row
// count. The first failing sub-query's envelope is returned as is.
func (m *Manager) GetTableInfo(ctx context.Context, database, table string) (*envelope.Result[TableInfo], error) {
	if err := ValidateTableRef(table); err != nil {
		return nil, err
	}
	quoted := QuoteIdentifier(table)
	start := time.Now()

	columns, err := m.Query(ctx, database, "PRAGMA table_info("+quoted+")", QueryOptions{})
	if err != nil {
		return nil, err
	}
	if !columns.Success {
		return envelope.Forward[TableInfo](columns), nil
	}

	indexes, err := m.Query(ctx, database, "PRAGMA index_list("+quoted+")", QueryOptions{})
	if err != nil {
		return nil, err
	}
	if !indexes.Success {
		return envelope.Forward[TableInfo](indexes), nil
	}

	created, err := m.Query(ctx, database, tableSQLQuery, QueryOptions{Params: Positional(table)})
	if err != nil {
		return nil, err
	}
	if !created.Success {
		return envelope.Forward[TableInfo](created), nil
	}

	count, err := m.Query(ctx, database, "SELECT COUNT(*) AS count FROM "+quoted, QueryOptions{})
	if err != nil {
		return nil, err
	}
	if !count.Success {
		return envelope.Forward[TableInfo](count), nil
	}

	info := TableInfo{
		Name:    table,
		Type:    "table",
		Columns: columns.Data.Results,
		Indexes: indexes.Data.Results,
	}
	if len(count.Data.Results) > 0 {
		v, _ := count.Data.Results[0].Get("count")
		info.RowCount = intValue(v)
	}
	if len(created.Data.Results) > 0 {
		s := stringColumn(created.Data.Results[0], "sql")
		info.SQL = &s
	}
	return envelope.OK(info, envelope.Timed(start)), nil
}

// GetTableIndexes lists the indexes of table with their columns.
func (m *Manager) GetTableIndexes(ctx context.Context, database, table string) (*envelope.Result[TableIndexes], error) {
	if err := ValidateTableRef(table); err != nil {
		return nil, err
	}
	start := time.Now()

	list, err := m.Query(ctx, database, "PRAGMA index_list("+QuoteIdentifier(table)+")", QueryOptions{})
	if err != nil {
		return nil, err
	}
	if !list.Success {
		return envelope.Forward[TableIndexes](list), nil
	}

	indexes := make([]IndexInfo, 0, len(list.Data.Results))
	for _, row := range list.Data.Results {
		name := stringColumn(row, "name")

		info, err := m.Query(ctx, database, "PRAGMA index_info("+QuoteIdentifier(name)+")", QueryOptions{})
		if err != nil {
			return nil, err
		}
		if !info.Success {
			return envelope.Forward[TableIndexes](info), nil
		}

		cols := make([]string, 0, len(info.Data.Results))
		for _, c := range info.Data.Results {
			cols = append(cols, stringColumn(c, "name"))
		}

		unique, _ := row.Get("unique")
		partial, _ := row.Get("partial")
		indexes = append(indexes, IndexInfo{
			Name:    name,
			Unique:  intValue(unique) != 0,
			Columns: cols,
			Partial: intValue(partial) != 0,
		})
	}

	meta := envelope.Timed(start)
	meta.Count = envelope.Int(len(indexes))
	return envelope.OK(TableIndexes{Table: table, Indexes: indexes}, meta), nil
}

// DeleteTable drops table if it exists.
func (m *Manager) DeleteTable(ctx context.Context, database, table string) (*envelope.Result[DeleteTableData], error) {
	if err := ValidateTableRef(table); err != nil {
		return nil, err
	}

	res, err := m.Execute(ctx, database, "DROP TABLE IF EXISTS "+QuoteIdentifier(table), Params{})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return envelope.Forward[DeleteTableData](res), nil
	}
	return envelope.OK(DeleteTableData{Table: table, Deleted: true}, res.Meta), nil
}

func stringColumn(row Row, name string) string {
	v, _ := row.Get(name)
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func intValue(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(t), 10, 64)
		return n
	default:
		return 0
	}
}
