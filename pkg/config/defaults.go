package config

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/marmos91/cfmgr/internal/telemetry"
	"github.com/marmos91/cfmgr/pkg/rowstore/sqldb"
)

const (
	defaultShutdownTimeout   = 30 * time.Second
	defaultMetricsPort       = 9090
	defaultOTLPEndpoint      = "localhost:4317"
	defaultPyroscopeEndpoint = "http://localhost:4040"
)

// ApplyDefaults fills every zero-valued field of cfg. Values already set
// are kept, except the log level which is upper-cased.
func ApplyDefaults(cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(cmp.Or(cfg.Logging.Level, "INFO"))
	cfg.Logging.Format = cmp.Or(cfg.Logging.Format, "text")
	cfg.Logging.Output = cmp.Or(cfg.Logging.Output, "stdout")

	tel := &cfg.Telemetry
	tel.Endpoint = cmp.Or(tel.Endpoint, defaultOTLPEndpoint)
	tel.SampleRate = cmp.Or(tel.SampleRate, 1.0)
	tel.Profiling.Endpoint = cmp.Or(tel.Profiling.Endpoint, defaultPyroscopeEndpoint)
	if len(tel.Profiling.ProfileTypes) == 0 {
		tel.Profiling.ProfileTypes = slices.Clone(telemetry.DefaultProfileTypes)
	}

	// The metrics port is only meaningful with metrics enabled, so a
	// disabled section round-trips without one.
	if cfg.Metrics.Enabled {
		cfg.Metrics.Port = cmp.Or(cfg.Metrics.Port, defaultMetricsPort)
	}
	cfg.ShutdownTimeout = cmp.Or(cfg.ShutdownTimeout, defaultShutdownTimeout)

	cfg.Server.ApplyDefaults()
	cfg.Auth.ApplyDefaults()
	cfg.Presign.ApplyDefaults()

	for name, db := range cfg.Databases {
		db.ApplyDefaults(name)
		cfg.Databases[name] = db
	}
}

// GetDefaultConfig returns the configuration written by "config init": one
// SQLite database named "main" and one in-memory bucket named "default".
func GetDefaultConfig() *Config {
	cfg := &Config{
		Databases: map[string]sqldb.Config{"main": {Type: sqldb.DatabaseTypeSQLite}},
		Buckets:   map[string]BucketConfig{"default": {Type: BucketTypeMemory}},
	}
	ApplyDefaults(cfg)
	return cfg
}
