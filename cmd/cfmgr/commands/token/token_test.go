package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/api/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueToken(t *testing.T) {
	token, err := issueToken(testSecret, "cfmgr", time.Hour, "ci", auth.ScopeReadOnly, 0)
	require.NoError(t, err)
	assert.Equal(t, "ci", token.Subject)
	assert.Equal(t, auth.ScopeReadOnly, token.Scope)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret})
	require.NoError(t, err)
	claims, err := svc.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsReadOnly())
	assert.Equal(t, "ci", claims.Subject)
}

func TestIssueTokenErrors(t *testing.T) {
	_, err := issueToken("", "cfmgr", time.Hour, "ci", auth.ScopeReadWrite, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")

	_, err = issueToken("short", "cfmgr", time.Hour, "ci", auth.ScopeReadWrite, 0)
	assert.ErrorIs(t, err, auth.ErrInvalidSecretLength)
}

func TestTokenTable(t *testing.T) {
	now := time.Now()
	token := &auth.Token{
		AccessToken: "abc.def.ghi",
		Subject:     "ci",
		Scope:       auth.ScopeReadWrite,
		ExpiresAt:   now.Add(90 * time.Minute),
	}

	table := tokenTable(token, now)
	assert.Equal(t, []string{"FIELD", "VALUE"}, table.Headers())
	rows := table.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Scope", "read-write"}, rows[1])
	assert.True(t, strings.HasPrefix(rows[2][1], "in "))
	assert.Equal(t, "abc.def.ghi", rows[3][1])
}
