package http

import (
	"encoding/json"
	"net/http"
	"time"

	apperrors "fleetrental/pkg/errors"
)

// ErrorResponse is the error surface presented at the HTTP boundary.
type ErrorResponse struct {
	Path        string            `json:"path"`
	StatusCode  int               `json:"statusCode"`
	Message     string            `json:"message"`
	Timestamp   time.Time         `json:"timestamp"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// SuccessResponse wraps payloads in a data envelope. Data is always
// present so an empty listing serializes as [] rather than vanishing.
type SuccessResponse struct {
	Data any `json:"data"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Return error so caller can log - no recovery possible after WriteHeader
		return err
	}
	return nil
}

func WriteError(w http.ResponseWriter, r *http.Request, err error) error {
	appErr := apperrors.AsAppError(err)
	return WriteJSON(w, appErr.StatusCode(), ErrorResponse{
		Path:        r.URL.Path,
		StatusCode:  appErr.StatusCode(),
		Message:     appErr.Message,
		Timestamp:   time.Now().UTC(),
		FieldErrors: appErr.FieldErrors,
	})
}

func WriteSuccess(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

func WriteCreated(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
