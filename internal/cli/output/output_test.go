package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Name", "Value")
	table.AddRow("key1", "value1")
	table.AddRow("key2", "value2")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	output := buf.String()
	assert.Contains(t, output, "NAME")
	assert.Contains(t, output, "VALUE")
	assert.Contains(t, output, "key1")
	assert.Contains(t, output, "value2")
}

func TestKeyValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, KeyValues(&buf, [][2]string{{"Bucket", "assets"}, {"Size", "10 B"}}))
	assert.Contains(t, buf.String(), "Bucket")
	assert.Contains(t, buf.String(), "assets")
}

func TestRowsTable(t *testing.T) {
	rows := []rowstore.Row{
		rowstore.NewRow([]string{"id", "name"}, []any{int64(1), "a"}),
		rowstore.NewRow([]string{"id", "name", "score"}, []any{int64(2), nil, 1.5}),
	}

	table := RowsTable(rows)
	assert.Equal(t, []string{"id", "name", "score"}, table.Headers())
	assert.Equal(t, [][]string{
		{"1", "a", ""},
		{"2", NullValue, "1.5"},
	}, table.Rows())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, "42", FormatValue(int64(42)))
	assert.Equal(t, "0.25", FormatValue(0.25))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "aGk=", FormatValue([]byte("hi")))
	assert.Equal(t, "7", FormatValue(7))
}

func TestPrinterFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	require.NoError(t, p.Print(map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, buf.String())
}

func TestPrintResult(t *testing.T) {
	table := NewTableData("Key")
	table.AddRow("a.txt")
	res := envelope.OK(map[string]string{"key": "a.txt"}, &envelope.Meta{DurationMs: 1.5, Count: envelope.Int(1)})

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable, false).PrintResult(table, res, res.Meta))
	assert.Contains(t, buf.String(), "a.txt")
	assert.Contains(t, buf.String(), "(1 items, 1.50 ms)")

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatJSON, false).PrintResult(table, res, res.Meta))
	assert.JSONEq(t, `{"success":true,"data":{"key":"a.txt"},"meta":{"duration_ms":1.5,"count":1}}`, buf.String())
}

func TestSummary(t *testing.T) {
	meta := &envelope.Meta{DurationMs: 2, Count: envelope.Int(3), TotalSize: envelope.Int64(2048), CommonPrefixCount: envelope.Int(1)}
	assert.Equal(t, "(3 items, "+HumanBytes(2048)+", 1 prefixes, 2.00 ms)", Summary(meta))
	assert.Equal(t, "(0.10 ms)", Summary(&envelope.Meta{DurationMs: 0.1}))
}

func TestPrinterMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	p.Success("done")
	p.Warning("careful")
	assert.Equal(t, "done\ncareful\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatTable, true).Error("boom")
	assert.Equal(t, "\033[31mboom\033[0m\n", buf.String())
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]string{"url": "http://x/?a=1&b=2"}))
	assert.Contains(t, buf.String(), "a=1&b=2")
}

func TestPrintYAMLUsesJSONTagsAndOrder(t *testing.T) {
	data := struct {
		Zeta  string       `json:"zeta"`
		Alpha int          `json:"alpha"`
		Row   rowstore.Row `json:"row"`
		Code  string       `json:"code"`
	}{
		Zeta:  "z",
		Alpha: 1,
		Row:   rowstore.NewRow([]string{"b", "a"}, []any{int64(2), "x"}),
		Code:  "123",
	}

	var buf bytes.Buffer
	require.NoError(t, PrintYAML(&buf, data))
	assert.Equal(t, "zeta: z\nalpha: 1\nrow:\n  b: 2\n  a: x\ncode: \"123\"\n", buf.String())
}
