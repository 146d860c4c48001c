package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

// respondMsg sends a JSON message response
func respondMsg(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"msg": message})
}

// fieldError is one entry of a validation failure response
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// respondValidationErrors sends the structured field-error list
func respondValidationErrors(w http.ResponseWriter, errs []fieldError) {
	respondJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// Take first IP if multiple
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}
	return r.RemoteAddr
}
