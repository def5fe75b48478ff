package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/cfmgr/internal/telemetry"
	"github.com/marmos91/cfmgr/pkg/api/auth"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags, then the per-instance backend settings that
// tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	for _, name := range sortedKeys(cfg.Databases) {
		db := cfg.Databases[name]
		if err := db.Validate(); err != nil {
			return fmt.Errorf("databases.%s: %w", name, err)
		}
	}

	for _, name := range sortedKeys(cfg.Buckets) {
		if err := cfg.Buckets[name].validate(); err != nil {
			return fmt.Errorf("buckets.%s: %w", name, err)
		}
	}

	if cfg.Auth.JWTSecret != "" && len(cfg.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret: must be at least %d characters", auth.MinSecretLength)
	}

	for _, pt := range cfg.Telemetry.Profiling.ProfileTypes {
		if !telemetry.ValidProfileType(pt) {
			return fmt.Errorf("telemetry.profiling.profile_types: unknown profile type %q", pt)
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port {
		return fmt.Errorf("metrics.port: %d is already used by server.port", cfg.Metrics.Port)
	}

	return nil
}

// formatValidationError renders validator errors as "Field: failed 'tag'
// validation" lines.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Errorf("%s: failed '%s' validation (value: %v)", fe.Namespace(), rule, fe.Value()))
	}
	return errors.Join(msgs...)
}
