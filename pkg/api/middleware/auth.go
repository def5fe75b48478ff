// Package middleware provides HTTP middleware for the cfmgr API.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/pkg/api/auth"
	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/objectstore"
)

// APIKeyHeader carries the static API key.
const APIKeyHeader = "X-API-Key"

// ObjectRoutePrefix is the path prefix of bucket routes. Presigned URLs are
// only honored below it.
const ObjectRoutePrefix = "/api/v1/r2/"

// Principal kinds.
const (
	PrincipalAnonymous = "anonymous"
	PrincipalAPIKey    = "api-key"
	PrincipalToken     = "token"
	PrincipalPresigned = "presigned"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Principal describes who made a request.
type Principal struct {
	Kind     string
	Subject  string
	ReadOnly bool
}

// PrincipalFromContext returns the principal stored by Authenticate, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// AuthOptions configure Authenticate. With no APIKey and no JWT every
// request is let through as anonymous.
type AuthOptions struct {
	APIKey        *auth.APIKeyVerifier
	JWT           *auth.JWTService
	PresignSecret string

	// Now defaults to time.Now and is used for presign expiry.
	Now func() time.Time
}

// WriteError writes a failed envelope with the given status.
func WriteError(w http.ResponseWriter, status int, code envelope.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope.Fail[struct{}](code, message, nil, nil))
}

// extractBearerToken extracts the token from a Bearer Authorization header.
func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	return parts[1], true
}

// presignedTarget extracts bucket and key from an object route path.
func presignedTarget(path string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(path, ObjectRoutePrefix)
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/objects/")
	if !found || bucket == "" || key == "" || strings.Contains(bucket, "/") {
		return "", "", false
	}
	return bucket, key, true
}

func isReadMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func withPrincipal(r *http.Request, p *Principal) *http.Request {
	if lc := logger.FromContext(r.Context()); lc != nil {
		lc.Subject = p.Kind
		if p.Subject != "" {
			lc.Subject = p.Kind + ":" + p.Subject
		}
	}
	return r.WithContext(context.WithValue(r.Context(), principalContextKey, p))
}

// Authenticate checks, in order: a presigned object URL, a bearer token,
// the X-API-Key header. A missing credential is 401, a wrong one 403.
func Authenticate(opts AuthOptions) func(http.Handler) http.Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Has("signature") || q.Has("expires") {
				if p, ok := checkPresigned(w, r, opts.PresignSecret, now()); ok {
					next.ServeHTTP(w, withPrincipal(r, p))
				}
				return
			}

			if opts.APIKey == nil && opts.JWT == nil {
				next.ServeHTTP(w, withPrincipal(r, &Principal{Kind: PrincipalAnonymous}))
				return
			}

			if token, ok := extractBearerToken(r); ok && opts.JWT != nil {
				claims, err := opts.JWT.Validate(token)
				if err != nil {
					msg := "Invalid token"
					if errors.Is(err, auth.ErrExpiredToken) {
						msg = "Token has expired"
					}
					WriteError(w, http.StatusUnauthorized, envelope.CodeUnauthorized, msg)
					return
				}
				if claims.IsReadOnly() && !isReadMethod(r.Method) {
					WriteError(w, http.StatusForbidden, envelope.CodeForbidden, "Token is read-only")
					return
				}
				next.ServeHTTP(w, withPrincipal(r, &Principal{
					Kind:     PrincipalToken,
					Subject:  claims.Subject,
					ReadOnly: claims.IsReadOnly(),
				}))
				return
			}

			key := r.Header.Get(APIKeyHeader)
			if key == "" || opts.APIKey == nil {
				WriteError(w, http.StatusUnauthorized, envelope.CodeUnauthorized, "Missing API key")
				return
			}
			if !opts.APIKey.Verify(key) {
				WriteError(w, http.StatusForbidden, envelope.CodeForbidden, "Invalid API key")
				return
			}
			next.ServeHTTP(w, withPrincipal(r, &Principal{Kind: PrincipalAPIKey}))
		})
	}
}

// checkPresigned validates the signature and expires query parameters.
// It writes the error response itself when the URL is not acceptable.
func checkPresigned(w http.ResponseWriter, r *http.Request, secret string, now time.Time) (*Principal, bool) {
	method := r.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodPut {
		WriteError(w, http.StatusForbidden, envelope.CodeForbidden, "Presigned URLs only allow GET and PUT")
		return nil, false
	}

	bucket, key, ok := presignedTarget(r.URL.Path)
	if !ok {
		WriteError(w, http.StatusForbidden, envelope.CodeForbidden, "Presigned URLs only apply to objects")
		return nil, false
	}

	q := r.URL.Query()
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusForbidden, envelope.CodeForbidden, "Invalid presigned URL")
		return nil, false
	}

	if err := objectstore.VerifyPresignedURL(secret, method, bucket, key, expires, q.Get("signature"), now); err != nil {
		msg := "Invalid presigned URL"
		if errors.Is(err, objectstore.ErrSignatureExpired) {
			msg = "Presigned URL has expired"
		}
		WriteError(w, http.StatusForbidden, envelope.CodeForbidden, msg)
		return nil, false
	}

	return &Principal{Kind: PrincipalPresigned, Subject: bucket + "/" + key, ReadOnly: method == http.MethodGet}, true
}
