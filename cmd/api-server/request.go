package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/protomem/gatekeeper/internal/model"
)

func subjectIDFromRequest(r *http.Request) string {
	return chi.URLParam(r, "subjectId")
}

// dayQueryParam parses a calendar date query parameter, defaulting to
// today when the parameter is absent.
func dayQueryParam(r *http.Request, key string) (model.Day, error) {
	if !r.URL.Query().Has(key) {
		return model.DayOf(time.Now()), nil
	}

	return model.ParseDay(r.URL.Query().Get(key))
}

func optionalStringQueryParams(r *http.Request, key string) *string {
	ref := new(string)
	val, ok := r.URL.Query().Get(key), r.URL.Query().Has(key)
	if !ok {
		return nil
	}
	*ref = val
	return ref
}
