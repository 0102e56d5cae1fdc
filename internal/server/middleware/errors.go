package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body written for errors surfaced by
// middleware. It mirrors the API error shape so clients see one format.
type ErrorResponse struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		RequestID string         `json:"request_id,omitempty"`
		Details   map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

var recoveryLogger = zap.NewNop()

// SetLogger installs the logger used when a panic is recovered.
func SetLogger(log *zap.Logger) {
	if log != nil {
		recoveryLogger = log
	}
}

// Recovery converts handler panics into 500 responses instead of
// tearing down the server.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := GetRequestID(r.Context())
				recoveryLogger.Error("recovered from handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID))

				envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", rec))
				if requestID != "" {
					envelope = envelope.WithCorrelationID(requestID)
				}
				writeErrorResponse(w, envelope, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	var resp ErrorResponse
	resp.Error.Code = envelope.Code
	resp.Error.Message = envelope.Message
	resp.Error.RequestID = envelope.CorrelationID
	if len(envelope.Context) > 0 {
		resp.Error.Details = envelope.Context
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
