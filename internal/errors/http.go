// Package errors defines the HTTP error response shape shared by the
// dashboard API handlers and middleware.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/touchthesun/marvin-sub002/pkg/gateway"
)

// HTTPErrorResponse is the JSON body returned for every API error.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError carries the machine-readable error code and detail.
type HTTPError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// WriteError writes a JSON error response with the given code and status.
func WriteError(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{Code: code, Message: message, RequestID: requestID},
	})
}

// RespondWithError maps a domain error to an HTTP error response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get("X-Request-ID")
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), requestID)
	case errors.Is(err, gateway.ErrUnavailable):
		WriteError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error(), requestID)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), requestID)
	}
}
