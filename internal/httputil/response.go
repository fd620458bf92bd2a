package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// Envelope is the standard success response shape. Every endpoint returns
// {"ok": true, ...} on success and {"ok": false, "error": ..., "code": ...}
// on failure.
type Envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorEnvelope is the standard failure response shape
type ErrorEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondOK sends a success envelope with an optional message
func RespondOK(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, Envelope{OK: true, Message: message}, statusCode)
}

// RespondData sends a success envelope carrying a payload
func RespondData(w http.ResponseWriter, data any, statusCode int) {
	RespondJSON(w, Envelope{OK: true, Data: data}, statusCode)
}

// RespondError sends a failure envelope with a machine-readable error code.
func RespondError(w http.ResponseWriter, message string, code string, statusCode int) {
	RespondJSON(w, ErrorEnvelope{OK: false, Error: message, Code: code}, statusCode)
}
