package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the uniform error response shape. Message is a short
// client-safe description; internal detail never goes here.
type ErrorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	RetryAfter    int    `json:"retryAfter,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the uniform error shape.
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	WriteJSON(w, code, ErrorBody{Error: errCode, Message: message})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Required for anything carrying tokens or session state.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
