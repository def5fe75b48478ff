package rowstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Database is the capability surface the manager needs from a SQL
// row-store instance. Adapters (see package sqldb) translate a concrete
// driver into this interface; tests use in-memory fakes.
type Database interface {
	// Prepare returns an unbound statement for query.
	Prepare(query string) PreparedStatement

	// Batch runs stmts in a single transaction. Either every statement
	// commits and one RunResult per statement is returned, or nothing
	// commits and an error is returned.
	Batch(ctx context.Context, stmts []PreparedStatement) ([]RunResult, error)
}

// PreparedStatement is a statement with optional bound parameters.
// Bind and BindNamed return a new statement and leave the receiver unchanged.
type PreparedStatement interface {
	Bind(args ...any) PreparedStatement
	BindNamed(args map[string]any) PreparedStatement

	// All runs the statement and returns every result row.
	All(ctx context.Context) (*QueryResult, error)

	// Run executes the statement and returns its write summary.
	Run(ctx context.Context) (*RunResult, error)
}

// Pinger is implemented by databases that support a liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueryResult holds the rows produced by a read statement.
type QueryResult struct {
	Rows []Row
}

// RunResult summarizes a write statement. RowsRead is reported only by
// backends that count scanned rows; it stays 0 when a backend cannot tell.
type RunResult struct {
	RowsRead  int64
	Changes   int64
	LastRowID int64
}

// Row is a single result row: an ordered mapping of column name to value.
// It marshals to a JSON object whose keys keep the column order.
type Row struct {
	Columns []string
	Values  []any
}

// NewRow builds a row from parallel column and value slices.
func NewRow(columns []string, values []any) Row {
	return Row{Columns: columns, Values: values}
}

// Get returns the value of column name.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map converts the row into an unordered map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// MarshalJSON writes the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object into the row, keeping key order.
// Integral numbers decode as int64.
func (r *Row) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid row JSON")
	}
	obj := gjson.ParseBytes(data)
	if !obj.IsObject() {
		return fmt.Errorf("row must be a JSON object")
	}
	r.Columns, r.Values = nil, nil
	obj.ForEach(func(k, v gjson.Result) bool {
		r.Columns = append(r.Columns, k.String())
		if v.Type == gjson.Number && !strings.ContainsAny(v.Raw, ".eE") {
			if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				r.Values = append(r.Values, n)
				return true
			}
		}
		r.Values = append(r.Values, v.Value())
		return true
	})
	return nil
}
