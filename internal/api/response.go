package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/weftworks/weft/internal/domain"
)

// envelope is the uniform response shape of the HTTP surface.
type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Unresolved carries the conflicting comparison keys when a merge is
	// rejected for missing resolutions.
	Unresolved []domain.ComparisonKey `json:"unresolved,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: status < 400, Data: data}); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeError maps a domain error onto a status code and error envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "STORAGE_ERROR"
	var unresolved []domain.ComparisonKey

	var uc *domain.UnresolvedConflictsError
	switch {
	case errors.As(err, &uc):
		status, code = http.StatusConflict, "UNRESOLVED_CONFLICTS"
		unresolved = uc.Keys
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrInvariantViolation):
		status, code = http.StatusConflict, "INVARIANT_VIOLATION"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &apiError{Code: code, Message: err.Error(), Unresolved: unresolved},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, domain.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}
