package sqldb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DatabaseType defines the supported row-store backends.
type DatabaseType string

const (
	// DatabaseTypeSQLite uses an embedded SQLite file (or ":memory:").
	DatabaseTypeSQLite DatabaseType = "sqlite"

	// DatabaseTypePostgres uses a PostgreSQL server.
	DatabaseTypePostgres DatabaseType = "postgres"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file. Default: $XDG_DATA_HOME/cfmgr/<name>.db
	Path string `mapstructure:"path" yaml:"path" json:"path,omitempty"`

	// ForeignKeys enables foreign key enforcement. Default: true.
	ForeignKeys *bool `mapstructure:"foreign_keys" yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
}

// PostgresConfig contains PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host" json:"host,omitempty"`
	Port         int    `mapstructure:"port" yaml:"port" json:"port,omitempty"`
	Database     string `mapstructure:"database" yaml:"database" json:"database,omitempty"`
	User         string `mapstructure:"user" yaml:"user" json:"user,omitempty"`
	Password     string `mapstructure:"password" yaml:"password" json:"password,omitempty"`
	SSLMode      string `mapstructure:"sslmode" yaml:"sslmode" json:"sslmode,omitempty"` // disable, require, verify-ca, verify-full
	SSLRootCert  string `mapstructure:"sslrootcert" yaml:"sslrootcert,omitempty" json:"sslrootcert,omitempty"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns,omitempty"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns" json:"max_idle_conns,omitempty"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)

	if c.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}
	if c.SSLRootCert != "" {
		dsn += fmt.Sprintf(" sslrootcert=%s", c.SSLRootCert)
	}

	return dsn
}

// Config describes one row-store database instance.
type Config struct {
	Type     DatabaseType   `mapstructure:"type" yaml:"type" json:"type" validate:"omitempty,oneof=sqlite postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty" json:"postgres,omitempty"`
}

// ApplyDefaults fills in missing configuration. name is the instance name
// and is used to derive the default SQLite file path.
func (c *Config) ApplyDefaults(name string) {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}

	if c.Type == DatabaseTypeSQLite {
		if c.SQLite.Path == "" {
			dataDir := os.Getenv("XDG_DATA_HOME")
			if dataDir == "" {
				homeDir, _ := os.UserHomeDir()
				dataDir = filepath.Join(homeDir, ".local", "share")
			}
			c.SQLite.Path = filepath.Join(dataDir, "cfmgr", name+".db")
		}
		if c.SQLite.ForeignKeys == nil {
			on := true
			c.SQLite.ForeignKeys = &on
		}
	}

	if c.Type == DatabaseTypePostgres {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.Postgres.MaxOpenConns == 0 {
			c.Postgres.MaxOpenConns = 25
		}
		if c.Postgres.MaxIdleConns == 0 {
			c.Postgres.MaxIdleConns = 5
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DatabaseTypePostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

func (c *Config) sqliteDSN() string {
	var pragmas []string
	if c.SQLite.Path != MemoryPath {
		pragmas = append(pragmas, "journal_mode(WAL)")
	}
	pragmas = append(pragmas, "busy_timeout(5000)")
	if c.SQLite.ForeignKeys == nil || *c.SQLite.ForeignKeys {
		pragmas = append(pragmas, "foreign_keys(1)")
	}
	return c.SQLite.Path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
}
