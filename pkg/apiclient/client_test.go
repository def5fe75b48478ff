package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	client := New("http://localhost:8080/")
	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.BaseURL())
}

func TestWithToken(t *testing.T) {
	client := New("http://localhost:8080")
	tokenClient := client.WithToken("test-token")

	// Original client should not have token
	assert.Empty(t, client.token)

	assert.Equal(t, "test-token", tokenClient.token)
	assert.Equal(t, "http://localhost:8080", tokenClient.baseURL)
}

func TestWithAPIKey(t *testing.T) {
	client := New("http://localhost:8080")
	keyClient := client.WithAPIKey("k")
	assert.Empty(t, client.apiKey)
	assert.Equal(t, "k", keyClient.apiKey)

	client.SetAPIKey("other")
	client.SetToken("tok")
	assert.Equal(t, "other", client.apiKey)
	assert.Equal(t, "tok", client.token)
}

func TestDoSendsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "key", r.Header.Get(APIKeyHeader))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL).WithToken("test-token").WithAPIKey("key")
	require.NoError(t, client.get("/test", nil))
}

func TestDoWithEnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"UNAUTHORIZED","message":"Invalid credentials"}}`))
	}))
	defer server.Close()

	err := New(server.URL).get("/test", nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
	assert.True(t, apiErr.IsAuthError())
	assert.Equal(t, "UNAUTHORIZED: Invalid credentials", apiErr.Error())
}

func TestDoWithPlainTextError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	err := New(server.URL).get("/missing", nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "404 page not found", apiErr.Message)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "HTTP 404: 404 page not found", apiErr.Error())
}

func TestDoWithPost(t *testing.T) {
	type Request struct {
		Name string `json:"name"`
	}
	type Response struct {
		ID int `json:"id"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "test", req.Name)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Response{ID: 123})
	}))
	defer server.Close()

	var resp Response
	require.NoError(t, New(server.URL).post("/test", Request{Name: "test"}, &resp))
	assert.Equal(t, 123, resp.ID)
}

func TestAPIErrorPredicates(t *testing.T) {
	tests := []struct {
		code       string
		notFound   bool
		conflict   bool
		validation bool
	}{
		{"INSTANCE_NOT_FOUND", true, false, false},
		{"OBJECT_NOT_FOUND", true, false, false},
		{"UPLOAD_NOT_FOUND", true, false, false},
		{"CONSTRAINT_VIOLATION", false, true, false},
		{"INVALID_SQL", false, false, true},
		{"INVALID_OPERATION", false, false, true},
		{"DATABASE_ERROR", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			e := &APIError{Code: tt.code}
			assert.Equal(t, tt.notFound, e.IsNotFound())
			assert.Equal(t, tt.conflict, e.IsConflict())
			assert.Equal(t, tt.validation, e.IsValidationError())
		})
	}
}

func TestResourcePathEscapesSegments(t *testing.T) {
	assert.Equal(t, "/api/v1/d1/my%20db/tables/t", resourcePath("d1", "my db", "tables", "t"))
	assert.Equal(t, "dir/a%20b.txt", keyPath("dir/a b.txt"))
	assert.Equal(t, "/x?key=k", withQuery("/x", map[string][]string{"key": {"k"}, "empty": {""}}))
	assert.Equal(t, "/x", withQuery("/x", map[string][]string{"bucket": {""}}))
}
