// Package httputil is the thin JSON request/response glue every handler in
// this repo shares.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"adxchange/internal/apierr"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// WriteError maps a service-layer failure to its HTTP shape. A bare error
// (not an *apierr.Error) is treated as internal and returns a 500.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		WriteJSON(w, apiErr.HTTPStatus(), ErrorResponse{Error: apiErr.Message})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
