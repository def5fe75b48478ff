package db

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/internal/cli/timeutil"
	"github.com/marmos91/cfmgr/pkg/config"
	"github.com/marmos91/cfmgr/pkg/rowstore/migrations"
)

var (
	migrateDir    string
	migrateStatus bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <database>",
	Short: "Apply SQL migration files",
	Long: `Apply the pending migration files of a directory to a database of the
local configuration.

Files are named NNNN_description.up.sql and run in version order. Each
migration runs in one transaction together with its record in the
d1_migrations table. Down migrations are ignored.

Examples:
  # Show applied and pending migrations
  cfmgr db migrate main --dir ./migrations --status

  # Apply pending migrations
  cfmgr db migrate main --dir ./migrations --config /etc/cfmgr/config.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVarP(&migrateDir, "dir", "d", "migrations", "Directory containing migration files")
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Only show the migration status")
}

// migrationList renders migration records.
type migrationList []migrations.Migration

func (l migrationList) Headers() []string {
	return []string{"VERSION", "NAME", "APPLIED", "APPLIED AT"}
}

func (l migrationList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, m := range l {
		appliedAt := "-"
		if m.AppliedAt != "" {
			appliedAt = timeutil.FormatTime(m.AppliedAt)
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(m.Version), 10),
			m.Name,
			cmdutil.BoolToYesNo(m.Applied),
			appliedAt,
		})
	}
	return rows
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if info, err := os.Stat(migrateDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migration directory not found: %s", migrateDir)
	}

	cfg, err := config.MustLoad(cmdutil.Flags.ConfigFile)
	if err != nil {
		return err
	}
	if _, ok := cfg.Databases[args[0]]; !ok {
		return fmt.Errorf("database %q is not configured", args[0])
	}

	mgr, err := config.CreateRowStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()

	runner := migrations.New(mgr, os.DirFS(migrateDir), ".")
	return migrate(cmd.Context(), os.Stdout, runner, args[0], migrateStatus)
}

func migrate(ctx context.Context, w io.Writer, runner *migrations.Runner, database string, statusOnly bool) error {
	p, err := cmdutil.Printer(w)
	if err != nil {
		return err
	}

	if statusOnly {
		res, err := runner.Status(ctx, database)
		if err != nil {
			return err
		}
		if !res.Success {
			return resultError(res.Error)
		}
		if err := p.PrintResult(migrationList(res.Data.Migrations), res, res.Meta); err != nil {
			return err
		}
		if p.Format() == output.FormatTable {
			p.Printf("%d pending\n", res.Data.Pending)
		}
		return nil
	}

	res, err := runner.Apply(ctx, database)
	if err != nil {
		return err
	}
	if !res.Success {
		return resultError(res.Error)
	}
	if p.Format() != output.FormatTable {
		return p.Print(res)
	}
	if len(res.Data.Applied) == 0 {
		p.Println("No pending migrations.")
		return nil
	}
	if err := output.PrintTable(w, migrationList(res.Data.Applied)); err != nil {
		return err
	}
	p.Success(fmt.Sprintf("Applied %d migration(s)", len(res.Data.Applied)))
	return nil
}
