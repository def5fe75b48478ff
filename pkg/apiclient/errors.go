package apiclient

import (
	"fmt"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

// APIError is a failed envelope, or a non-envelope error response, as
// seen by the client.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.Code == string(envelope.CodeUnauthorized) || e.Code == string(envelope.CodeForbidden)
}

// IsNotFound returns true when a database, bucket, object or upload does
// not exist.
func (e *APIError) IsNotFound() bool {
	switch envelope.Code(e.Code) {
	case envelope.CodeInstanceNotFound, envelope.CodeObjectNotFound, envelope.CodeUploadNotFound:
		return true
	}
	return e.Code == "" && e.StatusCode == 404
}

// IsConflict returns true if a write violated a constraint.
func (e *APIError) IsConflict() bool {
	return e.Code == string(envelope.CodeConstraintViolation)
}

// IsValidationError returns true if the request was rejected before
// reaching a backend.
func (e *APIError) IsValidationError() bool {
	switch envelope.Code(e.Code) {
	case envelope.CodeInvalidRequest, envelope.CodeInvalidArgument, envelope.CodeInvalidOperation,
		envelope.CodeInvalidKey, envelope.CodeInvalidSQL:
		return true
	}
	return false
}
