package config

import (
	"fmt"
	"os"
)

const configHeader = `# cfmgr configuration file
#
# Every value below can be overridden with an environment variable named
# after its path, e.g. CFMGR_LOGGING_LEVEL=DEBUG or CFMGR_SERVER_PORT=9000.
#
# databases: row-store instances (type: sqlite | postgres)
# buckets:   object-store buckets (type: memory | badger | s3)
#
# Secrets (auth.api_key, auth.jwt_secret, presign.secret_key) are empty by
# default; with no api_key, api_key_hash or jwt_secret the API is public.

`

// InitConfig writes a default configuration file at the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	return save(GetDefaultConfig(), path, configHeader)
}
