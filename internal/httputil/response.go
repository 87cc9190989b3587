// Package httputil holds the JSON response helpers shared by the HTTP
// handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/banshee-data/mttbar/internal/monitoring"
)

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

// WriteError writes {"error": err} with the status from StatusFor.
func WriteError(w http.ResponseWriter, err error, notFound ...error) {
	WriteJSON(w, StatusFor(err, notFound...), map[string]string{"error": err.Error()})
}

// StatusFor is 404 when err wraps one of notFound and 500 otherwise.
func StatusFor(err error, notFound ...error) int {
	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}
