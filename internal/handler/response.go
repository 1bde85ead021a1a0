package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//
//	{"code": "EMAIL_EXISTS", "message": "email already registered"}
//
// plus an optional "errors" array for field-level validation failures and
// an optional "services" array when an account only has OAuth identities.
// Clients switch on the stable code, never on the message text.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/auth-service/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Code     string                `json:"code"`
	Message  string                `json:"message"`
	Errors   []apperror.FieldError `json:"errors,omitempty"`
	Services []string              `json:"services,omitempty"`
}

// writeJSON sends a JSON response with the given status code. Headers and
// status must go out before the body: once Encode writes, header changes
// are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status and sends
// it. The service layer returns apperror sentinels; this is the single
// place they become status codes, so the services stay protocol-agnostic.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusUnprocessableEntity // 422
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized // 401
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden // 403
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict // 409
		}

		writeJSON(w, status, ErrorResponse{
			Code:     appErr.Code,
			Message:  appErr.Message,
			Errors:   appErr.Fields,
			Services: appErr.Services,
		})
		return
	}

	// Unknown error: log it, answer generically. The raw message might
	// carry SQL fragments or file paths and must not reach the client.
	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	})
}
