package commands

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/api/auth"
	"github.com/marmos91/cfmgr/pkg/apiclient"
)

func TestNormalizeServerURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"localhost:8080", "http://localhost:8080", false},
		{"http://localhost:8080/", "http://localhost:8080", false},
		{" https://cfmgr.example.com ", "https://cfmgr.example.com", false},
		{"ftp://example.com", "", true},
		{"http://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeServerURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// authServer accepts only the given API key on every route.
func authServer(t *testing.T, key string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get(apiclient.APIKeyHeader) != key {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"UNAUTHORIZED","message":"invalid credentials"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"databases":[]}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyCredential(t *testing.T) {
	srv := authServer(t, "secret")

	ctx, err := verifyCredential(srv.URL, "secret", "")
	require.NoError(t, err)
	assert.Equal(t, srv.URL, ctx.ServerURL)
	assert.Equal(t, "secret", ctx.APIKey)
	assert.True(t, ctx.ExpiresAt.IsZero())

	_, err = verifyCredential(srv.URL, "wrong", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials rejected")
}

func TestTokenExpiry(t *testing.T) {
	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: "0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)

	token, err := svc.Issue("ci", auth.ScopeReadWrite, time.Hour)
	require.NoError(t, err)

	exp := tokenExpiry(token.AccessToken)
	assert.WithinDuration(t, token.ExpiresAt, exp, time.Second)

	assert.True(t, tokenExpiry("not-a-jwt").IsZero())
}
