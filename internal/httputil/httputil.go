// Package httputil holds the request parsing and response helpers shared by
// all HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"

	"github.com/crxforge/crxforge/internal/types"
)

// Parse fills v from the request: JSON body for mutating methods, then path
// parameters via `path:"name"` struct tags (chi.URLParam).
func Parse(r *http.Request, v any) error {
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(v); err != nil {
				return err
			}
		}
	}

	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return nil
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return nil
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanSet() || field.Kind() != reflect.String {
			continue
		}
		if tag := typ.Field(i).Tag.Get("path"); tag != "" {
			if pathVal := chi.URLParam(r, tag); pathVal != "" {
				field.SetString(pathVal)
			}
		}
	}
	return nil
}

// OkJSON writes a 200 response with a JSON body.
func OkJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// Error maps domain errors onto HTTP statuses: bundle problems are the
// caller's (404/422 territory), provider problems are upstream (502), and
// anything else is a 500.
func Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var bundleErr *types.BundleError
	var sessionErr *types.SessionError
	switch {
	case errors.As(err, &bundleErr):
		status = http.StatusNotFound
	case errors.As(err, &sessionErr):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
