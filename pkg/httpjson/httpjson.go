// Package httpjson holds the JSON response helpers shared by the
// storefront handlers.
package httpjson

import (
	"encoding/json"
	"net/http"
)

func Write(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} and, when details is non-nil, a "details" member.
func Error(w http.ResponseWriter, code int, msg string, details any) {
	body := map[string]any{"error": msg}
	if details != nil {
		body["details"] = details
	}
	Write(w, code, body)
}

func MethodNotAllowed(w http.ResponseWriter) {
	Error(w, http.StatusMethodNotAllowed, "method not allowed", nil)
}
