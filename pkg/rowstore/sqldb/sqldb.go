// Package sqldb adapts SQL databases opened through GORM to the
// rowstore.Database interface. SQLite (pure Go) and PostgreSQL are
// supported through the same code path.
//
// Statements run on the underlying database/sql pool rather than through
// GORM's query builder, so placeholders and parameters reach the driver
// unchanged. GORM owns connection setup and transaction handling.
//
// Write statements report changes and, on SQLite, the last insert rowid.
// Rows read is not available from the drivers and is reported as 0.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/cfmgr/pkg/rowstore"
)

// DB is a rowstore.Database backed by a GORM connection.
type DB struct {
	gorm   *gorm.DB
	pool   *sql.DB
	config Config
}

var (
	_ rowstore.Database = (*DB)(nil)
	_ rowstore.Pinger   = (*DB)(nil)
)

// Open connects to the database described by config. ApplyDefaults must
// have been called (or the fields set explicitly) beforehand.
func Open(config Config) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		if config.SQLite.Path != MemoryPath {
			if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(config.sqliteDSN())
	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", config.Type, err)
	}

	pool, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}

	switch config.Type {
	case DatabaseTypeSQLite:
		// SQLite serializes writers; a single connection also keeps an
		// in-memory database shared between statements.
		pool.SetMaxOpenConns(1)
	case DatabaseTypePostgres:
		pool.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		pool.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}

	return &DB{gorm: gdb, pool: pool, config: config}, nil
}

// OpenMemory opens a private in-memory SQLite database.
func OpenMemory() (*DB, error) {
	on := true
	return Open(Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: MemoryPath, ForeignKeys: &on},
	})
}

// Type returns the backend type.
func (d *DB) Type() DatabaseType { return d.config.Type }

// Gorm exposes the underlying GORM handle.
func (d *DB) Gorm() *gorm.DB { return d.gorm }

// Prepare implements rowstore.Database.
func (d *DB) Prepare(query string) rowstore.PreparedStatement {
	return &statement{db: d, query: query}
}

// Batch implements rowstore.Database. Statements run in order inside one
// transaction; the first failure rolls everything back.
func (d *DB) Batch(ctx context.Context, stmts []rowstore.PreparedStatement) ([]rowstore.RunResult, error) {
	results := make([]rowstore.RunResult, 0, len(stmts))

	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conn := tx.Statement.ConnPool
		for i, ps := range stmts {
			s, ok := ps.(*statement)
			if !ok || s.db != d {
				return fmt.Errorf("statement %d was not prepared by this database", i)
			}
			res, err := conn.ExecContext(ctx, s.query, s.args...)
			if err != nil {
				return fmt.Errorf("statement %d: %w", i, err)
			}
			results = append(results, d.runResult(res))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Ping implements rowstore.Pinger.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.PingContext(ctx)
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.pool.Close()
}

// runResult converts a driver result. database/sql exposes no scanned-row
// count for either dialect, so RowsRead is always 0 here.
func (d *DB) runResult(res sql.Result) rowstore.RunResult {
	var out rowstore.RunResult
	if n, err := res.RowsAffected(); err == nil {
		out.Changes = n
	}
	// PostgreSQL has no last insert id; the driver reports an error.
	if d.config.Type == DatabaseTypeSQLite {
		if id, err := res.LastInsertId(); err == nil {
			out.LastRowID = id
		}
	}
	return out
}

type statement struct {
	db    *DB
	query string
	args  []any
}

func (s *statement) Bind(args ...any) rowstore.PreparedStatement {
	return &statement{db: s.db, query: s.query, args: append([]any(nil), args...)}
}

// BindNamed binds each entry as a sql.NamedArg. Keys are sorted so the
// argument order is deterministic.
func (s *statement) BindNamed(args map[string]any) rowstore.PreparedStatement {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bound := make([]any, 0, len(keys))
	for _, k := range keys {
		bound = append(bound, sql.Named(strings.TrimLeft(k, ":@$"), args[k]))
	}
	return &statement{db: s.db, query: s.query, args: bound}
}

func (s *statement) All(ctx context.Context) (*rowstore.QueryResult, error) {
	rows, err := s.db.pool.QueryContext(ctx, s.query, s.args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	return &rowstore.QueryResult{Rows: out}, nil
}

func (s *statement) Run(ctx context.Context) (*rowstore.RunResult, error) {
	res, err := s.db.pool.ExecContext(ctx, s.query, s.args...)
	if err != nil {
		return nil, err
	}
	r := s.db.runResult(res)
	return &r, nil
}

// scanRows reads every row, keeping column order. Text returned as []byte
// is converted to string; BLOB and BYTEA columns stay binary.
func scanRows(rows *sql.Rows) ([]rowstore.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	binary := make([]bool, len(columns))
	for i, t := range types {
		switch strings.ToUpper(t.DatabaseTypeName()) {
		case "BLOB", "BYTEA":
			binary[i] = true
		}
	}

	out := []rowstore.Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				if binary[i] {
					values[i] = append([]byte(nil), b...)
				} else {
					values[i] = string(b)
				}
			}
		}
		out = append(out, rowstore.NewRow(append([]string(nil), columns...), values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
