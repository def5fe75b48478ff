// Package migrations applies versioned SQL migration files to a row-store
// database.
//
// Files follow the golang-migrate naming scheme (NNNN_name.up.sql) and are
// read through its iofs source driver. Each pending migration runs as a
// single rowstore batch together with its bookkeeping row in the
// d1_migrations table, so a migration either applies completely or not at
// all. Down migrations are ignored.
package migrations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

// TableName is the bookkeeping table.
const TableName = "d1_migrations"

const createTableSQL = `CREATE TABLE IF NOT EXISTS ` + TableName +
	` (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at TEXT NOT NULL)`

const appliedSQL = `SELECT version, name, applied_at FROM ` + TableName + ` ORDER BY version`

// Migration is one migration file and its applied state.
type Migration struct {
	Version   uint   `json:"version"`
	Name      string `json:"name"`
	Applied   bool   `json:"applied"`
	AppliedAt string `json:"applied_at,omitempty"`
}

// StatusData is the payload of Status.
type StatusData struct {
	Migrations []Migration `json:"migrations"`
	Pending    int         `json:"pending"`
}

// ApplyData is the payload of Apply.
type ApplyData struct {
	Applied []Migration `json:"applied"`
}

type file struct {
	version uint
	name    string
	body    string
}

// Runner applies the migrations found in a directory of an fs.FS.
type Runner struct {
	manager *rowstore.Manager
	fsys    fs.FS
	dir     string
	now     func() time.Time
}

// New creates a runner reading migration files from dir inside fsys.
func New(manager *rowstore.Manager, fsys fs.FS, dir string) *Runner {
	return &Runner{manager: manager, fsys: fsys, dir: dir, now: time.Now}
}

// load reads every up migration in version order.
func (r *Runner) load() ([]file, error) {
	drv, err := iofs.New(r.fsys, r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	defer func() { _ = drv.Close() }()

	var files []file
	version, err := drv.First()
	for err == nil {
		f, rerr := readUp(drv, version)
		if rerr != nil {
			return nil, rerr
		}
		if f != nil {
			files = append(files, *f)
		}
		version, err = drv.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	return files, nil
}

func readUp(drv source.Driver, version uint) (*file, error) {
	rc, name, err := drv.ReadUp(version)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migration %d: %w", version, err)
	}
	defer func() { _ = rc.Close() }()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration %d: %w", version, err)
	}
	return &file{version: version, name: name, body: string(body)}, nil
}

// applied ensures the bookkeeping table exists and returns its rows keyed
// by version. A non-nil envelope reports a backend failure.
func (r *Runner) applied(ctx context.Context, database string) (map[uint]Migration, *envelope.Error, error) {
	res, err := r.manager.Execute(ctx, database, createTableSQL, rowstore.Params{})
	if err != nil {
		return nil, nil, err
	}
	if !res.Success {
		return nil, res.Error, nil
	}

	rows, err := r.manager.Query(ctx, database, appliedSQL, rowstore.QueryOptions{})
	if err != nil {
		return nil, nil, err
	}
	if !rows.Success {
		return nil, rows.Error, nil
	}

	out := make(map[uint]Migration, len(rows.Data.Results))
	for _, row := range rows.Data.Results {
		v, _ := row.Get("version")
		name, _ := row.Get("name")
		at, _ := row.Get("applied_at")
		version := toUint(v)
		out[version] = Migration{
			Version:   version,
			Name:      fmt.Sprint(name),
			Applied:   true,
			AppliedAt: fmt.Sprint(at),
		}
	}
	return out, nil, nil
}

// Status lists every known migration, applied or pending, in version order.
// Rows recorded in the table without a matching file are listed too.
func (r *Runner) Status(ctx context.Context, database string) (*envelope.Result[StatusData], error) {
	start := time.Now()
	files, err := r.load()
	if err != nil {
		return nil, err
	}
	done, failure, err := r.applied(ctx, database)
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return &envelope.Result[StatusData]{Error: failure, Meta: envelope.Timed(start)}, nil
	}

	data := StatusData{Migrations: []Migration{}}
	seen := make(map[uint]bool, len(files))
	for _, f := range files {
		seen[f.version] = true
		if m, ok := done[f.version]; ok {
			data.Migrations = append(data.Migrations, m)
			continue
		}
		data.Migrations = append(data.Migrations, Migration{Version: f.version, Name: f.name})
		data.Pending++
	}
	for v, m := range done {
		if !seen[v] {
			data.Migrations = append(data.Migrations, m)
		}
	}
	sort.Slice(data.Migrations, func(i, j int) bool {
		return data.Migrations[i].Version < data.Migrations[j].Version
	})

	meta := envelope.Timed(start)
	meta.Count = envelope.Int(len(data.Migrations))
	return envelope.OK(data, meta), nil
}

// Apply runs every pending migration in version order. It stops at the
// first failing migration; migrations applied before it stay applied.
func (r *Runner) Apply(ctx context.Context, database string) (*envelope.Result[ApplyData], error) {
	start := time.Now()
	files, err := r.load()
	if err != nil {
		return nil, err
	}
	done, failure, err := r.applied(ctx, database)
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return &envelope.Result[ApplyData]{Error: failure, Meta: envelope.Timed(start)}, nil
	}

	data := ApplyData{Applied: []Migration{}}
	for _, f := range files {
		if _, ok := done[f.version]; ok {
			continue
		}

		appliedAt := r.now().UTC().Format(time.RFC3339)
		statements := make([]rowstore.Statement, 0, 8)
		for _, s := range rowstore.SplitStatements(f.body) {
			statements = append(statements, rowstore.Statement{SQL: s})
		}
		// Literal values keep the insert portable across placeholder styles.
		statements = append(statements, rowstore.Statement{SQL: fmt.Sprintf(
			"INSERT INTO %s (version, name, applied_at) VALUES (%d, %s, %s)",
			TableName, f.version, rowstore.QuoteLiteral(f.name), rowstore.QuoteLiteral(appliedAt))})

		res, err := r.manager.Batch(ctx, database, statements)
		if err != nil {
			return nil, err
		}
		if !res.Success {
			logger.WarnCtx(ctx, "migration failed",
				logger.KeyDatabase, database, logger.KeyVersion, f.version, "name", f.name)
			details := map[string]any{"version": f.version, "name": f.name}
			for k, v := range res.Error.Details {
				details[k] = v
			}
			return envelope.Fail[ApplyData](res.Error.Code,
				fmt.Sprintf("migration %d_%s: %s", f.version, f.name, res.Error.Message),
				details, envelope.Timed(start)), nil
		}

		logger.InfoCtx(ctx, "migration applied",
			logger.KeyDatabase, database, logger.KeyVersion, f.version, "name", f.name)
		data.Applied = append(data.Applied, Migration{
			Version:   f.version,
			Name:      f.name,
			Applied:   true,
			AppliedAt: appliedAt,
		})
	}

	meta := envelope.Timed(start)
	meta.Count = envelope.Int(len(data.Applied))
	return envelope.OK(data, meta), nil
}

func toUint(v any) uint {
	switch t := v.(type) {
	case int64:
		return uint(t)
	case int32:
		return uint(t)
	case int:
		return uint(t)
	case float64:
		return uint(t)
	default:
		var n uint
		_, _ = fmt.Sscan(fmt.Sprint(v), &n)
		return n
	}
}
