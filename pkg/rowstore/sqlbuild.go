package rowstore

import (
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

// Identifiers (tables, columns, indexes) cannot be bound as parameters, so
// every identifier that reaches generated SQL is checked against these
// patterns first and then emitted double-quoted.
var (
	identPattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	columnTypePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ]*(\([0-9, ]+\))?$`)
)

const (
	maxIdentLength    = 128
	maxTableRefLength = 1024
)

// ValidateIdentifier returns an ErrInvalidArgument-wrapping error unless
// name is a plain SQL identifier.
func ValidateIdentifier(kind, name string) error {
	if len(name) == 0 || len(name) > maxIdentLength || !identPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid %s name %q", envelope.ErrInvalidArgument, kind, name)
	}
	return nil
}

// ValidateTableRef checks the name of a table that already exists, as read
// back from the catalog or passed to a read or drop. Such names are always
// emitted through QuoteIdentifier, so anything the engine accepted is
// allowed; only empty, oversized or NUL-carrying names are refused.
func ValidateTableRef(name string) error {
	if len(name) == 0 || len(name) > maxTableRefLength || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: invalid table name %q", envelope.ErrInvalidArgument, name)
	}
	return nil
}

// QuoteIdentifier double-quotes name, doubling any embedded quote. It is
// used for validated identifiers and for names read back from the catalog.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral renders v as a SQL literal for export scripts. Strings are
// single-quoted with embedded quotes doubled, blobs are hex literals and
// booleans are written as 1/0.
func QuoteLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(t)) + "'"
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t)
	case float32:
		return formatFloat(float64(t))
	case float64:
		return formatFloat(t)
	case time.Time:
		return "'" + t.UTC().Format(time.RFC3339Nano) + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(t), "'", "''") + "'"
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "NULL"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// TableSchema describes a table for CreateTable.
type TableSchema struct {
	Columns     []ColumnDef  `json:"columns" validate:"required,min=1,dive"`
	Constraints []Constraint `json:"constraints,omitempty" validate:"dive"`
	Indexes     []IndexDef   `json:"indexes,omitempty" validate:"dive"`
}

// ColumnDef describes one column. Default and Check are DDL expressions
// supplied by a trusted operator and are emitted verbatim.
type ColumnDef struct {
	Name          string `json:"name" validate:"required"`
	Type          string `json:"type" validate:"required"`
	PrimaryKey    bool   `json:"primary_key,omitempty"`
	AutoIncrement bool   `json:"auto_increment,omitempty"`
	Nullable      *bool  `json:"nullable,omitempty"`
	Default       any    `json:"default,omitempty"`
	Unique        bool   `json:"unique,omitempty"`
	Check         string `json:"check,omitempty"`
}

// Constraint is a table-level constraint.
type Constraint struct {
	Type    string   `json:"type" validate:"required"`
	Columns []string `json:"columns" validate:"required,min=1"`
}

// IndexDef describes an index created after the table.
type IndexDef struct {
	Name    string   `json:"name" validate:"required"`
	Columns []string `json:"columns" validate:"required,min=1"`
	Unique  bool     `json:"unique,omitempty"`
}

const (
	ConstraintUnique     = "UNIQUE"
	ConstraintPrimaryKey = "PRIMARY KEY"
)

// BuildCreateTable renders a CREATE TABLE statement. Columns and
// constraints appear in declaration order.
func BuildCreateTable(name string, schema TableSchema, ifNotExists bool) (string, error) {
	if err := ValidateIdentifier("table", name); err != nil {
		return "", err
	}
	if len(schema.Columns) == 0 {
		return "", fmt.Errorf("%w: table %q has no columns", envelope.ErrInvalidArgument, name)
	}

	defs := make([]string, 0, len(schema.Columns)+len(schema.Constraints))
	for _, col := range schema.Columns {
		def, err := columnSQL(col)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}

	for _, c := range schema.Constraints {
		kind := strings.ToUpper(strings.TrimSpace(c.Type))
		if kind != ConstraintUnique && kind != ConstraintPrimaryKey {
			return "", fmt.Errorf("%w: unsupported constraint type %q", envelope.ErrInvalidArgument, c.Type)
		}
		cols, err := columnList(c.Columns)
		if err != nil {
			return "", err
		}
		defs = append(defs, fmt.Sprintf("%s (%s)", kind, cols))
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(QuoteIdentifier(name))
	b.WriteString(" (")
	b.WriteString(strings.Join(defs, ", "))
	b.WriteString(")")
	return b.String(), nil
}

func columnSQL(col ColumnDef) (string, error) {
	if err := ValidateIdentifier("column", col.Name); err != nil {
		return "", err
	}
	if !columnTypePattern.MatchString(col.Type) {
		return "", fmt.Errorf("%w: invalid type %q for column %q", envelope.ErrInvalidArgument, col.Type, col.Name)
	}

	var b strings.Builder
	b.WriteString(QuoteIdentifier(col.Name))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(col.Type))
	if col.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if col.AutoIncrement {
		b.WriteString(" AUTOINCREMENT")
	}
	if col.Nullable != nil && !*col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(defaultSQL(col.Default))
	}
	if col.Unique {
		b.WriteString(" UNIQUE")
	}
	if col.Check != "" {
		b.WriteString(" CHECK (")
		b.WriteString(col.Check)
		b.WriteString(")")
	}
	return b.String(), nil
}

// defaultSQL renders a DEFAULT value. Strings are expressions (e.g.
// CURRENT_TIMESTAMP or 'text') and pass through; other values are literals.
func defaultSQL(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if n, ok := v.(float64); ok && n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return strconv.FormatInt(int64(n), 10)
	}
	return QuoteLiteral(v)
}

func columnList(cols []string) (string, error) {
	if len(cols) == 0 {
		return "", fmt.Errorf("%w: empty column list", envelope.ErrInvalidArgument)
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		if err := ValidateIdentifier("column", c); err != nil {
			return "", err
		}
		quoted[i] = QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", "), nil
}

// BuildCreateIndex renders a CREATE INDEX IF NOT EXISTS statement.
func BuildCreateIndex(table string, idx IndexDef) (string, error) {
	if err := ValidateIdentifier("index", idx.Name); err != nil {
		return "", err
	}
	cols, err := columnList(idx.Columns)
	if err != nil {
		return "", err
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, QuoteIdentifier(idx.Name), QuoteIdentifier(table), cols), nil
}

// BuildInsert renders a literal INSERT statement for an exported row.
func BuildInsert(table string, row Row) string {
	cols := make([]string, len(row.Columns))
	vals := make([]string, len(row.Values))
	for i, c := range row.Columns {
		cols[i] = QuoteIdentifier(c)
		vals[i] = QuoteLiteral(row.Values[i])
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		QuoteIdentifier(table), strings.Join(cols, ", "), strings.Join(vals, ", "))
}

// BuildParameterizedInsert renders an INSERT with ?1..?N placeholders for
// the given columns.
func BuildParameterizedInsert(table string, columns []string) (string, error) {
	cols, err := columnList(columns)
	if err != nil {
		return "", err
	}
	ph := make([]string, len(columns))
	for i := range columns {
		ph[i] = "?" + strconv.Itoa(i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdentifier(table), cols, strings.Join(ph, ", ")), nil
}

// SplitStatements splits a SQL script on semicolons that are outside
// quoted strings, identifiers and comments. Empty statements are dropped.
func SplitStatements(script string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote rune
	)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				// A doubled quote is an escaped quote, not a terminator.
				if i+1 < len(runes) && runes[i+1] == quote {
					cur.WriteRune(runes[i+1])
					i++
				} else {
					quote = 0
				}
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
			cur.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			cur.WriteRune('\n')
		case r == ';':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
