package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/pkg/config"
	"github.com/marmos91/cfmgr/pkg/rowstore/sqldb"
)

func TestRestartRequired(t *testing.T) {
	current := config.GetDefaultConfig()

	next := config.GetDefaultConfig()
	next.Logging.Level = "DEBUG"
	assert.Empty(t, restartRequired(current, next))

	next = config.GetDefaultConfig()
	next.Server.Port = 9000
	next.Auth.APIKey = "secret"
	assert.Equal(t, []string{"server", "auth"}, restartRequired(current, next))

	next = config.GetDefaultConfig()
	next.Databases["analytics"] = sqldb.Config{Type: sqldb.DatabaseTypeSQLite}
	assert.Equal(t, []string{"stores"}, restartRequired(current, next))

	next = config.GetDefaultConfig()
	delete(next.Buckets, "default")
	next.Buckets["assets"] = config.BucketConfig{Type: config.BucketTypeMemory}
	assert.Equal(t, []string{"stores"}, restartRequired(current, next))
}

func TestApplyConfigChange(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "INFO", "text", false)
	t.Cleanup(func() { logger.SetLevel("INFO") })

	current := config.GetDefaultConfig()
	apply := applyConfigChange(current)

	next := config.GetDefaultConfig()
	next.Logging.Level = "DEBUG"
	apply(next)

	assert.Equal(t, logger.LevelDebug, logger.GetLevel())
	assert.Equal(t, "DEBUG", current.Logging.Level)
	assert.Contains(t, buf.String(), "Log level changed")

	next = config.GetDefaultConfig()
	next.Logging.Level = "DEBUG"
	next.Presign.SecretKey = "new-secret"
	apply(next)
	assert.Contains(t, buf.String(), "Configuration changes need a restart")
}
