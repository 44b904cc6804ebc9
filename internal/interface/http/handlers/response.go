package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/auniver/quiz-bridge/internal/domain/shared"
)

// writeJSON writes v as the whole response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// WriteError is writeError for the server package.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

// statusFor maps an error onto the bridge's HTTP contract.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, shared.ErrBadAction):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing text of err.
// Domain errors expose their Message; anything else its full text.
func messageFor(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// writeDomainError writes err with the status it maps to.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), messageFor(err))
}
