// Package handlers provides the HTTP handlers of the cfmgr API. Every
// handler answers with the manager's envelope, mapped to an HTTP status.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/pkg/api/middleware"
	"github.com/marmos91/cfmgr/pkg/envelope"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// writeJSON writes a JSON response with the given status code.
//
// Encoding is done to a buffer first so that an encoding failure can still
// produce an error response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", logger.KeyError, err)
		middleware.WriteError(w, http.StatusInternalServerError, envelope.CodeInternalError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// StatusForCode maps an envelope code to an HTTP status.
func StatusForCode(code envelope.Code) int {
	switch code {
	case "":
		return http.StatusOK
	case envelope.CodeObjectNotFound, envelope.CodeUploadNotFound, envelope.CodeInstanceNotFound:
		return http.StatusNotFound
	case envelope.CodeConstraintViolation:
		return http.StatusConflict
	case envelope.CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case envelope.CodeChecksumMismatch:
		return http.StatusBadRequest
	case envelope.CodeUnauthorized:
		return http.StatusUnauthorized
	case envelope.CodeForbidden:
		return http.StatusForbidden
	}
	s := string(code)
	if strings.HasPrefix(s, "INVALID_") || strings.HasPrefix(s, "MISSING_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeResult writes an envelope. okStatus is used on success.
func writeResult[T any](w http.ResponseWriter, res *envelope.Result[T], okStatus int) {
	if res.Success {
		writeJSON(w, okStatus, res)
		return
	}
	writeJSON(w, StatusForCode(res.Code()), res)
}

// MapManagerError maps a precondition error returned by a manager to an
// HTTP status and envelope code.
func MapManagerError(err error) (int, envelope.Code) {
	switch {
	case errors.Is(err, envelope.ErrInstanceNotFound):
		return http.StatusNotFound, envelope.CodeInstanceNotFound
	case errors.Is(err, envelope.ErrInvalidOperation):
		return http.StatusBadRequest, envelope.CodeInvalidOperation
	case errors.Is(err, envelope.ErrInvalidArgument):
		return http.StatusBadRequest, envelope.CodeInvalidArgument
	default:
		return http.StatusInternalServerError, envelope.CodeInternalError
	}
}

// handleManagerError writes the response for a precondition error.
func handleManagerError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := MapManagerError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.ErrorCtx(r.Context(), "API request failed", logger.KeyError, err)
		msg = "Internal server error"
	}
	middleware.WriteError(w, status, code, msg)
}

// respond writes either the envelope or the precondition error of a
// manager call.
func respond[T any](w http.ResponseWriter, r *http.Request, res *envelope.Result[T], err error, okStatus int) {
	if err != nil {
		handleManagerError(w, r, err)
		return
	}
	writeResult(w, res, okStatus)
}

// badRequest writes a 400 INVALID_REQUEST envelope.
func badRequest(w http.ResponseWriter, msg string) {
	middleware.WriteError(w, http.StatusBadRequest, envelope.CodeInvalidRequest, msg)
}

// decodeJSONBody decodes and validates a JSON request body. It writes the
// error response itself and returns false on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "Invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		badRequest(w, validationMessage(err))
		return false
	}
	return true
}

// validationMessage renders validator errors as "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		p := fe.Namespace() + ": " + fe.Tag()
		if fe.Param() != "" {
			p += "=" + fe.Param()
		}
		parts = append(parts, p)
	}
	return "Invalid request: " + strings.Join(parts, ", ")
}
