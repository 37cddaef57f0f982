// Package web holds the JSON response helpers shared by the HTTP handlers.
package web

import (
	"encoding/json"
	"net/http"
)

// FieldErrors collects per-field validation messages for 422 responses.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe FieldErrors) Empty() bool { return len(fe) == 0 }

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"message": msg})
}

// ValidationFailed writes the per-field error payload with status 422.
func ValidationFailed(w http.ResponseWriter, fe FieldErrors) {
	JSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fe})
}
