// Package apiclient provides a REST API client for the cfmgr server.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

// APIKeyHeader carries the static API key.
const APIKeyHeader = "X-API-Key"

// Client is the cfmgr API client. It authenticates with an API key, a
// bearer token, or neither.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	token      string
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithToken returns a new client with the given bearer token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// WithAPIKey returns a new client with the given API key.
func (c *Client) WithAPIKey(key string) *Client {
	clone := *c
	clone.apiKey = key
	return &clone
}

// SetToken sets the bearer token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// SetAPIKey sets the API key.
func (c *Client) SetAPIKey(key string) {
	c.apiKey = key
}

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newRequest builds a request with the client's credentials.
func (c *Client) newRequest(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// send performs req and returns the response with its body fully read.
func (c *Client) send(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, respBody, nil
}

// do sends a JSON request and decodes the JSON response into result.
func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := c.newRequest(method, path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, respBody, err := c.send(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp.StatusCode, respBody, result)
}

// decodeResponse decodes an envelope response. Non-2xx statuses become
// an *APIError built from the envelope error, or from the raw body when
// the server did not answer with an envelope.
func decodeResponse(status int, body []byte, result any) error {
	if status >= 400 {
		return errorFromBody(status, body)
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func errorFromBody(status int, body []byte) *APIError {
	var res envelope.Result[json.RawMessage]
	if json.Unmarshal(body, &res) == nil && res.Error != nil {
		return &APIError{
			StatusCode: status,
			Code:       string(res.Error.Code),
			Message:    res.Error.Message,
			Details:    res.Error.Details,
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" || json.Valid(body) {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}

// get performs a GET request.
func (c *Client) get(path string, result any) error {
	return c.do(http.MethodGet, path, nil, result)
}

// post performs a POST request.
func (c *Client) post(path string, body, result any) error {
	return c.do(http.MethodPost, path, body, result)
}

// delete performs a DELETE request.
func (c *Client) delete(path string, result any) error {
	return c.do(http.MethodDelete, path, nil, result)
}
