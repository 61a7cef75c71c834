package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondServiceError writes a service error with its mapped status
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	if retry, ok := details["retryAfter"]; ok {
		if secs, ok := retry.(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	}
	respondError(w, status, code, message, details)
}

const maxBodyBytes = 64 << 10

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Codes the transport layer emits on its own
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeNotFound           = apperrors.CodeNotFound
	ErrCodeUnauthorized       = apperrors.CodeUnauthorized
	ErrCodeRateLimitExceeded  = apperrors.CodeRateLimited
	ErrCodeInternalError      = apperrors.CodeInternal
	ErrCodeServiceUnavailable = apperrors.CodeUnavailable
)

// mapServiceError maps service errors to HTTP status codes. System errors
// are reported with a generic message so causes never reach the client.
func mapServiceError(err error) (int, string, string, map[string]interface{}) {
	catErr := apperrors.Categorize(err)
	if catErr == nil {
		return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil
	}
	if catErr.StatusCode >= http.StatusInternalServerError && catErr.Category != apperrors.CategoryProvider &&
		catErr.StatusCode != http.StatusServiceUnavailable {
		return catErr.StatusCode, ErrCodeInternalError, "An internal error occurred", nil
	}
	return catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details
}
