package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorResponse is the envelope for all error responses.
type errorResponse struct {
	Error string `json:"error"`
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "path", r.URL.Path, "error", err)
	}
}

// RespondError writes a JSON error envelope.
func RespondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondJSON(w, r, status, errorResponse{Error: message})
}

// RespondBadRequest writes a 400 error.
func RespondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	RespondError(w, r, http.StatusBadRequest, message)
}

// RespondNotFound writes a 404 error.
func RespondNotFound(w http.ResponseWriter, r *http.Request, message string) {
	RespondError(w, r, http.StatusNotFound, message)
}

// RespondInternalError writes a 500 error without leaking details.
func RespondInternalError(w http.ResponseWriter, r *http.Request) {
	RespondError(w, r, http.StatusInternalServerError, "internal server error")
}
