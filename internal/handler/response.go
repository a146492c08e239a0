package handler

// Response helpers: every endpoint sends JSON through writeJSON, and every
// failure path funnels through writeError so the domain-error → status-code
// mapping lives in exactly one place.
//
// The error body shape matches what the SPA expects:
//
//	{"message": "Incorrect password!"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaily-20/cloudify-auth/internal/apperror"
)

// writeJSON sends a JSON response with the given status code. Headers and
// status must go out before the first body byte, hence the ordering.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError translates a domain error into an HTTP response.
//
// The service layer returns apperror values; nothing below the handlers
// knows what a status code is. Mapping:
//
//	ErrValidation   → 400 (duplicate username/email, missing fields)
//	ErrUnauthorized → 401 (bad password, invalid/superseded tokens)
//	ErrNotFound     → 404
//	anything else   → 500, logged, with a generic body — internal error
//	                  text never reaches the client
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		}

		writeJSON(w, status, map[string]string{"message": appErr.Message})
		return
	}

	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"message": "An internal error occurred",
	})
}
