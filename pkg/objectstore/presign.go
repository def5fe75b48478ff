package objectstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

// Presign limits, in seconds.
const (
	DefaultPresignExpiry = 3600
	MaxPresignExpiry     = 604800
)

// Presign verification errors.
var (
	ErrSignatureExpired = errors.New("presigned URL expired")
	ErrSignatureInvalid = errors.New("presigned URL signature mismatch")
)

// PresignOptions are the arguments of GeneratePresignedURL. Method defaults
// to GET and ExpiresIn (seconds) to DefaultPresignExpiry.
type PresignOptions struct {
	Method    string `json:"method,omitempty" validate:"omitempty,oneof=GET PUT get put"`
	ExpiresIn int    `json:"expires_in,omitempty" validate:"gte=0"`
	SecretKey string `json:"-"`
}

// PresignData is the payload of GeneratePresignedURL.
type PresignData struct {
	URL       string `json:"url"`
	Method    string `json:"method"`
	ExpiresAt string `json:"expires_at"`
	ExpiresIn int    `json:"expires_in"`
}

// Sign returns the hex HMAC-SHA256 of "method\nbucket\nkey\nexpires".
// The signature does not cover the host serving the URL.
func Sign(secret, method, bucket, key string, expires int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method + "\n" + bucket + "\n" + key + "\n" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// ObjectPath returns the API path of an object, escaping each key segment.
func ObjectPath(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/api/v1/r2/" + url.PathEscape(bucket) + "/objects/" + strings.Join(segments, "/")
}

// GeneratePresignedURL builds a time-limited URL for one object. It does
// not touch the backend.
func (m *Manager) GeneratePresignedURL(bucket, key string, opts PresignOptions) (*envelope.Result[PresignData], error) {
	if _, err := m.lookup(bucket); err != nil {
		return nil, err
	}
	start := time.Now()

	if opts.SecretKey == "" {
		return envelope.Fail[PresignData](envelope.CodeMissingSecretKey,
			"Secret key is required for presigned URLs", nil, envelope.Timed(start)), nil
	}

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = "GET"
	}
	if method != "GET" && method != "PUT" {
		return nil, fmt.Errorf("%w: presigned method must be GET or PUT, got %q", envelope.ErrInvalidArgument, opts.Method)
	}

	expiresIn := opts.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = DefaultPresignExpiry
	}
	expiresIn = min(expiresIn, MaxPresignExpiry)

	expiresAt := m.now().Add(time.Duration(expiresIn) * time.Second).UTC()
	expires := expiresAt.Unix()
	sig := Sign(opts.SecretKey, method, bucket, key, expires)

	q := url.Values{}
	q.Set("signature", sig)
	q.Set("expires", strconv.FormatInt(expires, 10))

	return envelope.OK(PresignData{
		URL:       ObjectPath(bucket, key) + "?" + q.Encode(),
		Method:    method,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		ExpiresIn: expiresIn,
	}, envelope.Timed(start)), nil
}

// VerifyPresignedURL checks a signature produced by GeneratePresignedURL.
func VerifyPresignedURL(secret, method, bucket, key string, expires int64, signature string, now time.Time) error {
	if secret == "" {
		return ErrSignatureInvalid
	}
	if now.Unix() > expires {
		return ErrSignatureExpired
	}
	want := Sign(secret, strings.ToUpper(method), bucket, key, expires)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(signature))) {
		return ErrSignatureInvalid
	}
	return nil
}
