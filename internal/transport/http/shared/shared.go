// Package shared holds the JSON response helpers used by every handler so
// error envelopes stay consistent across the API surface.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "sentra/pkg/domain-errors"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ErrorResponse is the wire shape for all error outcomes. The message is
// the domain error's safe message; internals never leak through it.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError translates a domain error into the HTTP envelope. Unclassified
// errors surface as a generic internal failure.
func WriteError(w http.ResponseWriter, err error, requestID string) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code), RequestID: requestID}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.Message = de.Message
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}
