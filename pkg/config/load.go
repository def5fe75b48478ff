package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/cfmgr/internal/bytesize"
)

// Load reads the file at path, or the default location when path is
// empty. A missing default file yields GetDefaultConfig.
func Load(path string) (*Config, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return GetDefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load for commands that need a real file: it fails with
// instructions to run "cfmgr config init" instead of falling back to
// defaults.
func MustLoad(path string) (*Config, error) {
	switch {
	case path == "" && !DefaultConfigExists():
		return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
			"Create one with:\n"+
			"  cfmgr config init\n\n"+
			"or pass an explicit file:\n"+
			"  cfmgr <command> --config /path/to/config.yaml",
			GetDefaultConfigPath())
	case path == "":
		path = GetDefaultConfigPath()
	default:
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Create it with:\n"+
				"  cfmgr config init --config %s",
				path, path)
		}
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		return v
	}
	v.AddConfigPath(GetConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	return v
}

// save writes cfg as YAML after header. The file is private since it may
// hold API keys and signing secrets.
func save(cfg *Config, path, header string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(header), body...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var (
	byteSizeType = reflect.TypeOf(bytesize.ByteSize(0))
	durationType = reflect.TypeOf(time.Duration(0))
)

// decodeHooks lets the file spell sizes as "64Mi" and durations as "30s".
// YAML numbers arrive as int or float64 and are taken as bytes or
// nanoseconds.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		func(_ reflect.Type, to reflect.Type, data any) (any, error) {
			if to != byteSizeType {
				return data, nil
			}
			if s, ok := data.(string); ok {
				return bytesize.ParseByteSize(s)
			}
			if n, ok := asInt64(data); ok {
				return bytesize.ByteSize(n), nil
			}
			return data, nil
		},
		func(_ reflect.Type, to reflect.Type, data any) (any, error) {
			if to != durationType {
				return data, nil
			}
			if s, ok := data.(string); ok {
				return time.ParseDuration(s)
			}
			if n, ok := asInt64(data); ok {
				return time.Duration(n), nil
			}
			return data, nil
		},
	)
}

func asInt64(data any) (int64, bool) {
	switch n := data.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// decodeOptions decodes a backend's free-form options map into out.
// Unknown keys are errors.
func decodeOptions(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decodeHooks(),
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// GetConfigDir returns $XDG_CONFIG_HOME/cfmgr or ~/.config/cfmgr, falling
// back to the working directory.
func GetConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cfmgr")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "cfmgr")
	}
	return "."
}

// GetDefaultConfigPath returns GetConfigDir()/config.yaml.
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether GetDefaultConfigPath exists.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
