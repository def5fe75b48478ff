package apiclient

import (
	"net/url"
	"strings"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

// call sends a JSON request and returns the decoded envelope. A failed
// envelope is returned as an *APIError.
func call[T any](c *Client, method, path string, body any) (*envelope.Result[T], error) {
	var res envelope.Result[T]
	if err := c.do(method, path, body, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, failure(&res)
	}
	return &res, nil
}

// failure converts a failed envelope into an *APIError.
func failure[T any](res *envelope.Result[T]) *APIError {
	if res.Error == nil {
		return &APIError{Message: "request failed"}
	}
	return &APIError{
		Code:    string(res.Error.Code),
		Message: res.Error.Message,
		Details: res.Error.Details,
	}
}

// resourcePath joins escaped path segments below /api/v1.
//
// Example:
//
//	path := resourcePath("d1", "main", "tables", "users")
func resourcePath(segments ...string) string {
	var b strings.Builder
	b.WriteString("/api/v1")
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// keyPath escapes each "/"-separated segment of an object key.
func keyPath(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// withQuery appends non-empty query parameters to path.
func withQuery(path string, params url.Values) string {
	for k, v := range params {
		if len(v) == 0 || v[0] == "" {
			delete(params, k)
		}
	}
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}
