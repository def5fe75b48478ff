// Package auth provides the credentials accepted by the cfmgr API: a static
// API key (plain or bcrypt-hashed) and HS256 bearer tokens.
package auth

import "github.com/golang-jwt/jwt/v5"

// Scope limits what a bearer token may do.
type Scope string

const (
	// ScopeReadWrite allows every operation.
	ScopeReadWrite Scope = "read-write"
	// ScopeReadOnly allows only GET and HEAD requests.
	ScopeReadOnly Scope = "read-only"
)

// Claims are the JWT claims of a cfmgr bearer token.
type Claims struct {
	jwt.RegisteredClaims

	// Scope is ScopeReadWrite when empty.
	Scope Scope `json:"scope,omitempty"`
}

// IsReadOnly reports whether the token only grants reads.
func (c *Claims) IsReadOnly() bool {
	return c.Scope == ScopeReadOnly
}
