package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-must-be-32-chars!"

func newService(t *testing.T) *JWTService {
	t.Helper()
	s, err := NewJWTService(JWTConfig{Secret: testSecret, Issuer: "test-issuer", TokenDuration: time.Hour})
	require.NoError(t, err)
	return s
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{Secret: "short"})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)
}

func TestNewJWTService_Defaults(t *testing.T) {
	s, err := NewJWTService(JWTConfig{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, s.TokenDuration())
	assert.Equal(t, "cfmgr", s.config.Issuer)
}

func TestIssueAndValidate(t *testing.T) {
	s := newService(t)

	tok, err := s.Issue("ci-bot", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, ScopeReadWrite, tok.Scope)
	assert.Equal(t, int64(3600), tok.ExpiresIn)

	claims, err := s.Validate(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", claims.Subject)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.False(t, claims.IsReadOnly())
}

func TestIssueReadOnly(t *testing.T) {
	s := newService(t)

	tok, err := s.Issue("viewer", ScopeReadOnly, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(300), tok.ExpiresIn)

	claims, err := s.Validate(tok.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsReadOnly())
}

func TestIssueInvalidScope(t *testing.T) {
	s := newService(t)
	_, err := s.Issue("x", Scope("admin"), 0)
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestValidateExpired(t *testing.T) {
	s := newService(t)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }

	tok, err := s.Issue("x", "", time.Minute)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = s.Validate(tok.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	s := newService(t)

	other, err := NewJWTService(JWTConfig{Secret: strings.Repeat("x", 32), Issuer: "test-issuer"})
	require.NoError(t, err)
	tok, err := other.Issue("x", "", 0)
	require.NoError(t, err)

	_, err = s.Validate(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	wrongIssuer, err := NewJWTService(JWTConfig{Secret: testSecret, Issuer: "someone-else"})
	require.NoError(t, err)
	tok, err = wrongIssuer.Issue("x", "", 0)
	require.NoError(t, err)

	_, err = s.Validate(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	_, err = s.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	s := newService(t)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "test-issuer",
		Subject:   "x",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAPIKeyVerifier(t *testing.T) {
	assert.Nil(t, NewAPIKeyVerifier("", ""))

	plain := NewAPIKeyVerifier("s3cret", "")
	assert.True(t, plain.Verify("s3cret"))
	assert.False(t, plain.Verify("wrong"))
	assert.False(t, plain.Verify(""))

	hash, err := HashAPIKey("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	hashed := NewAPIKeyVerifier("ignored", hash)
	assert.True(t, hashed.Verify("s3cret"))
	assert.False(t, hashed.Verify("ignored"))

	var none *APIKeyVerifier
	assert.False(t, none.Verify("anything"))
}

func TestHashAPIKeyEmpty(t *testing.T) {
	_, err := HashAPIKey("")
	assert.Error(t, err)
}
