package apiclient

import (
	"encoding/json"
	"net/http"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

// HealthStatus is the payload of the health endpoints. Databases and
// Buckets list failing instances only.
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version,omitempty"`
	Timestamp string            `json:"timestamp"`
	Databases map[string]string `json:"databases,omitempty"`
	Buckets   map[string]string `json:"buckets,omitempty"`
}

// Health checks that the server is up.
func (c *Client) Health() (*HealthStatus, error) {
	res, err := call[HealthStatus](c, http.MethodGet, resourcePath("health"), nil)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Ready pings every database and bucket. An unhealthy server returns its
// status together with an *APIError.
func (c *Client) Ready() (*HealthStatus, error) {
	req, err := c.newRequest(http.MethodGet, resourcePath("health", "ready"), nil)
	if err != nil {
		return nil, err
	}
	resp, body, err := c.send(req)
	if err != nil {
		return nil, err
	}

	var res envelope.Result[HealthStatus]
	if resp.StatusCode >= 400 {
		_ = json.Unmarshal(body, &res)
		return res.Data, errorFromBody(resp.StatusCode, body)
	}
	if err := decodeResponse(resp.StatusCode, body, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}
