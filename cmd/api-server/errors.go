package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/protomem/gatekeeper/internal/model"
	"github.com/protomem/gatekeeper/internal/response"
	"github.com/protomem/gatekeeper/internal/validator"
)

func (app *application) reportServerError(r *http.Request, err error) {
	var (
		message = err.Error()
		method  = r.Method
		url     = r.URL.String()
	)

	requestAttrs := slog.Group("request", "method", method, "url", url)
	app.logger.Error(message, requestAttrs)
}

func (app *application) errorMessage(w http.ResponseWriter, r *http.Request, status int, message string, headers http.Header) {
	message = strings.ToUpper(message[:1]) + message[1:]

	err := response.JSONWithHeaders(w, status, response.JSONObject{"error": message}, headers)
	if err != nil {
		app.reportServerError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.reportServerError(r, err)

	message := "The server encountered a problem and could not process your request"
	app.errorMessage(w, r, http.StatusInternalServerError, message, nil)
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	message := "The requested resource could not be found"
	app.errorMessage(w, r, http.StatusNotFound, message, nil)
}

func (app *application) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("The %s method is not supported for this resource", r.Method)
	app.errorMessage(w, r, http.StatusMethodNotAllowed, message, nil)
}

func (app *application) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	app.errorMessage(w, r, http.StatusBadRequest, err.Error(), nil)
}

func (app *application) failedValidation(w http.ResponseWriter, r *http.Request, v validator.Validator) {
	err := response.JSON(w, http.StatusUnprocessableEntity, v)
	if err != nil {
		app.serverError(w, r, err)
	}
}

// mapModelError translates engine error kinds into HTTP responses. The
// engine returns structured kinds, never user-facing strings; rendering
// happens here.
func (app *application) mapModelError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		app.errorMessage(w, r, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, model.ErrExists),
		errors.Is(err, model.ErrAlreadyClosed),
		errors.Is(err, model.ErrConstraint):
		app.errorMessage(w, r, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, model.ErrInvalidInput):
		app.errorMessage(w, r, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, model.ErrStoreUnavailable):
		headers := http.Header{"Retry-After": []string{"1"}}
		app.errorMessage(w, r, http.StatusServiceUnavailable, err.Error(), headers)
	default:
		app.serverError(w, r, err)
	}
}
