package api

import (
	"time"

	"github.com/marmos91/cfmgr/internal/bytesize"
)

// APIConfig configures the REST API HTTP server.
type APIConfig struct {
	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means there is no timeout.
	// Default: 30s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 30s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// MaxUploadSize caps the body of object uploads and part uploads.
	// Default: 100Mi
	MaxUploadSize bytesize.ByteSize `mapstructure:"max_upload_size" yaml:"max_upload_size"`
}

// AuthConfig configures request authentication. With neither an API key
// nor a JWT secret configured, every route is public.
type AuthConfig struct {
	// APIKey is compared in constant time with the X-API-Key header.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// APIKeyHash is a bcrypt hash of the API key. When set, it is used
	// instead of APIKey so the plain key never lives in the config file.
	APIKeyHash string `mapstructure:"api_key_hash" yaml:"api_key_hash,omitempty"`

	// JWTSecret signs and verifies bearer tokens (HS256).
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`

	// JWTIssuer is the iss claim of issued tokens.
	// Default: cfmgr
	JWTIssuer string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`

	// TokenDuration is the lifetime of issued tokens.
	// Default: 24h
	TokenDuration time.Duration `mapstructure:"token_duration" yaml:"token_duration"`
}

// Enabled reports whether any credential is configured.
func (c *AuthConfig) Enabled() bool {
	return c.APIKey != "" || c.APIKeyHash != "" || c.JWTSecret != ""
}

// PresignConfig configures presigned object URLs.
type PresignConfig struct {
	// SecretKey signs presigned URLs. Without it, presign requests fail
	// with MISSING_SECRET_KEY.
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`

	// DefaultExpiry applies when a request does not carry expires_in.
	// Default: 1h
	DefaultExpiry time.Duration `mapstructure:"default_expiry" yaml:"default_expiry" validate:"gte=0"`
}

// ApplyDefaults fills in zero values.
func (c *APIConfig) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = 100 * bytesize.MiB
	}
}

// ApplyDefaults fills in zero values.
func (c *AuthConfig) ApplyDefaults() {
	if c.JWTIssuer == "" {
		c.JWTIssuer = "cfmgr"
	}
	if c.TokenDuration == 0 {
		c.TokenDuration = 24 * time.Hour
	}
}

// ApplyDefaults fills in zero values.
func (c *PresignConfig) ApplyDefaults() {
	if c.DefaultExpiry == 0 {
		c.DefaultExpiry = time.Hour
	}
}
