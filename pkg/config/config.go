// Package config loads the cfmgr server configuration: which row-store
// databases and object-store buckets exist, how the REST API is exposed,
// and the ambient logging, metrics and tracing settings.
//
// Values come from, highest precedence first: CFMGR_* environment
// variables, the YAML file, and the defaults in defaults.go.
package config

import (
	"time"

	"github.com/marmos91/cfmgr/pkg/api"
	"github.com/marmos91/cfmgr/pkg/rowstore/sqldb"
)

// EnvPrefix prefixes environment overrides: CFMGR_SERVER_PORT sets
// server.port.
const EnvPrefix = "CFMGR"

// Config is the whole configuration file.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout bounds how long in-flight requests may run after a
	// stop signal.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Server  api.APIConfig     `mapstructure:"server" yaml:"server"`
	Auth    api.AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Presign api.PresignConfig `mapstructure:"presign" yaml:"presign"`

	// Databases are keyed by the name clients pass as the database
	// parameter.
	Databases map[string]sqldb.Config `mapstructure:"databases" validate:"dive" yaml:"databases"`

	// Buckets are keyed by bucket name.
	Buckets map[string]BucketConfig `mapstructure:"buckets" validate:"dive" yaml:"buckets"`
}

// LoggingConfig mirrors logger.Config. Level is case-insensitive and
// normalized to upper case; Output is stdout, stderr or a file path.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig enables OTLP span export of manager calls and HTTP
// requests.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the collector's gRPC host:port.
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig enables pushing Pyroscope profiles.
type ProfilingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes lists Pyroscope profile names such as cpu,
	// inuse_space or mutex_count.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig exposes /metrics on its own port. Nothing is recorded
// while disabled.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}
