package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashAPIKey returns the bcrypt hash stored in auth.api_key_hash.
func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("api key is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}

// APIKeyVerifier checks X-API-Key values against a plain key or a bcrypt
// hash. The hash wins when both are set.
type APIKeyVerifier struct {
	plain []byte
	hash  []byte
}

// NewAPIKeyVerifier returns nil when neither key nor hash is set.
func NewAPIKeyVerifier(key, hash string) *APIKeyVerifier {
	if key == "" && hash == "" {
		return nil
	}
	v := &APIKeyVerifier{}
	if hash != "" {
		v.hash = []byte(hash)
	} else {
		v.plain = []byte(key)
	}
	return v
}

// Verify reports whether key matches.
func (v *APIKeyVerifier) Verify(key string) bool {
	if v == nil || key == "" {
		return false
	}
	if v.hash != nil {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare(v.plain, []byte(key)) == 1
}
