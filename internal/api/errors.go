package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/logging"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMIT_EXCEEDED"
)

// respondServiceError writes err with the status it carries. Client errors keep
// their message; server errors are logged and replaced by the route's generic
// message so internals do not leak.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	catErr := apperrors.Categorize(err)
	status := apperrors.GetHTTPStatusCode(catErr)
	logger := logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
		"code":   catErr.Code,
	})

	if !apperrors.IsSystemError(catErr) {
		if apperrors.IsUserError(catErr) {
			logger.Debug(catErr.Message)
		}
		respondError(w, status, catErr.Code, catErr.Message)
		return
	}

	logger.WithError(err).Error(fallback)
	respondError(w, status, catErr.Code, fallback)
}
