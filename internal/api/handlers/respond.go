package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parleyhq/parley/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeValidationError reports a field-level validation failure with enough
// structure for clients to highlight the offending input.
func writeValidationError(w http.ResponseWriter, verr *domain.ValidationError) {
	body := map[string]any{
		"error":  "validation failed",
		"field":  verr.Field,
		"reason": verr.Reason,
	}
	if verr.Index >= 0 {
		body["index"] = verr.Index
	}
	writeJSON(w, http.StatusBadRequest, body)
}

// writeDomainError maps the shared error taxonomy to HTTP statuses. Returns
// false when the error is not one of the known kinds so callers can apply
// their own mapping.
func writeDomainError(w http.ResponseWriter, err error) bool {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeValidationError(w, verr)
		return true
	}
	var uerr *domain.UpstreamError
	if errors.As(err, &uerr) {
		if uerr.Fatal {
			writeError(w, http.StatusBadGateway, "could not generate a response, please retry")
		} else {
			writeError(w, http.StatusServiceUnavailable, uerr.Collaborator+" temporarily unavailable")
		}
		return true
	}
	return false
}
