package output

import (
	"encoding/base64"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/marmos91/cfmgr/internal/bytesize"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

// NullValue is how SQL NULL is shown in tables.
const NullValue = "NULL"

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	// Headers returns the column headers for the table.
	Headers() []string
	// Rows returns the data rows for the table.
	Rows() [][]string
}

func newTable(w io.Writer, separator string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(separator)
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// PrintTable writes data as a borderless table with upper-cased headers.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := newTable(w, "")
	table.SetHeader(data.Headers())
	table.SetAutoFormatHeaders(true)
	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

// TableData is a simple implementation of TableRenderer for ad-hoc tables.
type TableData struct {
	headers []string
	rows    [][]string
}

// NewTableData creates a new TableData with the given headers.
func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers, rows: make([][]string, 0)}
}

// AddRow adds a row to the table.
func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

// Headers implements TableRenderer.
func (t *TableData) Headers() []string {
	return t.headers
}

// Rows implements TableRenderer.
func (t *TableData) Rows() [][]string {
	return t.rows
}

// KeyValues prints "key: value" pairs, one per line.
func KeyValues(w io.Writer, pairs [][2]string) error {
	table := newTable(w, ":")
	table.SetAutoFormatHeaders(false)
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
	return nil
}

// RowsTable renders SQL result rows. Columns are taken from the first row
// and extended by any column a later row adds.
func RowsTable(rows []rowstore.Row) *TableData {
	var columns []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, c := range row.Columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}

	table := NewTableData(columns...)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			v, ok := row.Get(c)
			if !ok {
				continue
			}
			cells[i] = FormatValue(v)
		}
		table.AddRow(cells...)
	}
	return table
}

// FormatValue renders a SQL value for a table cell.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return NullValue
	case string:
		return t
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// HumanBytes renders a size with binary units.
func HumanBytes(n int64) string {
	return bytesize.Human(n)
}
