package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// errorEnvelope is the wire shape spec.md §6 requires for every error response.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      apierr.Code    `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// RespondError renders err as the standard error envelope. If err is not an
// *apierr.Error it is treated as an opaque internal failure — callers should
// not leak unwrapped error strings to clients.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierr.Internal("an internal error occurred")
	}

	Respond(w, apiErr.HTTPStatus(), errorEnvelope{
		Error: errorBody{
			Code:      apiErr.Code,
			Message:   apiErr.Message,
			Details:   apiErr.Details,
			RequestID: RequestIDFromContext(r.Context()),
		},
	})
}
