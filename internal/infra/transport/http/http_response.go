package http

import (
	"encoding/json"
	"net/http"

	context_ "github.com/mkrupp/homecase-authsvc/internal/infra/context"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Status        int               `json:"status"`
	Message       string            `json:"message"`
	Errors        map[string]string `json:"errors,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	//nolint:wrapcheck
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorResponse. Internal errors carry the request trace id
// as correlation id so operators can find the matching log entries.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	resp := ErrorResponse{Status: status, Message: message} //nolint:exhaustruct

	if status >= http.StatusInternalServerError {
		resp.CorrelationID, _ = context_.TraceIDFromContext(r.Context())
	}

	_ = WriteJSON(w, status, resp)
}
