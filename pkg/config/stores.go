package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/cfmgr/internal/bytesize"
	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/pkg/metrics"
	"github.com/marmos91/cfmgr/pkg/objectstore"
	"github.com/marmos91/cfmgr/pkg/objectstore/badger"
	"github.com/marmos91/cfmgr/pkg/objectstore/memory"
	"github.com/marmos91/cfmgr/pkg/objectstore/s3"
	"github.com/marmos91/cfmgr/pkg/rowstore"
	"github.com/marmos91/cfmgr/pkg/rowstore/sqldb"
)

// Bucket backend types.
const (
	BucketTypeMemory = "memory"
	BucketTypeBadger = "badger"
	BucketTypeS3     = "s3"
)

// BucketConfig describes one object-store bucket. Only the options block
// matching Type is read; it is decoded into the backend's own config type.
type BucketConfig struct {
	// Type selects the backend: memory, badger or s3
	Type string `mapstructure:"type" validate:"required,oneof=memory badger s3" yaml:"type"`

	// Memory options (max_object_size)
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`

	// Badger options (path, in_memory, max_object_size)
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// S3 options (bucket, region, endpoint, key_prefix, max_retries,
	// force_path_style, access_key_id, secret_access_key)
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// MemoryBucketConfig configures an in-memory bucket.
type MemoryBucketConfig struct {
	// MaxObjectSize rejects larger objects. Zero disables the limit.
	MaxObjectSize bytesize.ByteSize `mapstructure:"max_object_size" yaml:"max_object_size,omitempty"`
}

// MemoryConfig decodes the memory options.
func (c BucketConfig) MemoryConfig() (MemoryBucketConfig, error) {
	var out MemoryBucketConfig
	if err := decodeOptions(c.Memory, &out); err != nil {
		return out, fmt.Errorf("invalid memory options: %w", err)
	}
	return out, nil
}

// BadgerConfig decodes and validates the badger options.
func (c BucketConfig) BadgerConfig() (badger.Config, error) {
	var out badger.Config
	if err := decodeOptions(c.Badger, &out); err != nil {
		return out, fmt.Errorf("invalid badger options: %w", err)
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// S3Config decodes and validates the s3 options.
func (c BucketConfig) S3Config() (s3.Config, error) {
	var out s3.Config
	if err := decodeOptions(c.S3, &out); err != nil {
		return out, fmt.Errorf("invalid s3 options: %w", err)
	}
	if err := validator.New().Struct(out); err != nil {
		return out, fmt.Errorf("invalid s3 options: %w", err)
	}
	return out, nil
}

// validate checks the options block selected by Type.
func (c BucketConfig) validate() error {
	var err error
	switch c.Type {
	case BucketTypeMemory:
		_, err = c.MemoryConfig()
	case BucketTypeBadger:
		_, err = c.BadgerConfig()
	case BucketTypeS3:
		_, err = c.S3Config()
	default:
		err = fmt.Errorf("unknown bucket type: %q", c.Type)
	}
	return err
}

// sortedKeys returns the map keys in order so that errors and logs are
// deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CreateRowStore opens every configured database and returns a manager
// over them. Databases opened before a failure are closed.
func CreateRowStore(cfg *Config) (*rowstore.Manager, error) {
	databases := make(map[string]rowstore.Database, len(cfg.Databases))
	closeAll := func() {
		_ = rowstore.New(databases).Close()
	}

	for _, name := range sortedKeys(cfg.Databases) {
		dbCfg := cfg.Databases[name]
		dbCfg.ApplyDefaults(name)

		db, err := sqldb.Open(dbCfg)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("open database %q: %w", name, err)
		}
		databases[name] = db
		logger.Info("Database opened", logger.KeyDatabase, name, "type", string(dbCfg.Type))
	}

	return rowstore.New(databases, rowstore.WithMetrics(metrics.NewRowStoreMetrics())), nil
}

// CreateObjectStore creates every configured bucket and returns a manager
// over them. Buckets created before a failure are closed.
func CreateObjectStore(ctx context.Context, cfg *Config) (*objectstore.Manager, error) {
	buckets := make(map[string]objectstore.Bucket, len(cfg.Buckets))
	closeAll := func() {
		_ = objectstore.New(buckets).Close()
	}

	for _, name := range sortedKeys(cfg.Buckets) {
		b, err := createBucket(ctx, cfg.Buckets[name])
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("create bucket %q: %w", name, err)
		}
		buckets[name] = b
		logger.Info("Bucket created", logger.KeyBucket, name, "type", cfg.Buckets[name].Type)
	}

	return objectstore.New(buckets, objectstore.WithMetrics(metrics.NewObjectStoreMetrics())), nil
}

// createBucket creates a single bucket backend.
func createBucket(ctx context.Context, cfg BucketConfig) (objectstore.Bucket, error) {
	switch cfg.Type {
	case BucketTypeMemory:
		memCfg, err := cfg.MemoryConfig()
		if err != nil {
			return nil, err
		}
		return memory.New(memory.WithMaxObjectSize(memCfg.MaxObjectSize.Int64())), nil
	case BucketTypeBadger:
		badgerCfg, err := cfg.BadgerConfig()
		if err != nil {
			return nil, err
		}
		return badger.Open(badgerCfg)
	case BucketTypeS3:
		s3Cfg, err := cfg.S3Config()
		if err != nil {
			return nil, err
		}
		return s3.NewFromConfig(ctx, s3Cfg)
	default:
		return nil, fmt.Errorf("unknown bucket type: %q", cfg.Type)
	}
}
