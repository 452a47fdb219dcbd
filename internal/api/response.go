package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/core"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  []core.FieldError `json:"errors,omitempty"`
	Path    string            `json:"path,omitempty"`
	Stack   string            `json:"stack,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindAuth:
		return http.StatusUnauthorized
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindRateLimited:
		return http.StatusTooManyRequests
	case core.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError renders err with the status for its kind. Internal causes are
// logged but never sent to the client.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *core.Error
	if !errors.As(err, &e) {
		e = core.InternalError("Internal server error", err)
	}
	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error(e.Message,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(e.Err),
		)
	}
	writeJSON(w, status, envelope{Success: false, Message: e.Message, Errors: e.Fields})
}

func (h *APIHandler) decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("invalid request body", zap.String("path", r.URL.Path), zap.Error(err))
		return core.ValidationError("Invalid request body")
	}
	return nil
}
