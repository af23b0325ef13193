package web

// errors.go provides JSON response helpers for the API surface. Page and
// fragment errors are rendered through the view templates instead; these
// helpers cover the history API and middleware.

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeError writes a JSON error response with a sanitized message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// isPartial reports whether the request came from the page script, which
// swaps the returned fragment into the main region instead of navigating.
func isPartial(r *http.Request) bool {
	return r.Header.Get("X-Partial") == "true"
}
