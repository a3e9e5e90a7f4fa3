package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() http.Handler {
	mux := chi.NewRouter()

	mux.NotFound(app.notFound)
	mux.MethodNotAllowed(app.methodNotAllowed)

	mux.Use(app.traceID)
	mux.Use(app.logAccess)
	mux.Use(app.recoverPanic)

	mux.Use(app.CORS)

	mux.Get("/api/v1/status", app.handleStatus)

	mux.Post("/api/v1/scan", app.handleScan)
	mux.Post("/api/v1/capture", app.handleCapture)

	mux.Get("/api/v1/stats", app.handleStats)
	mux.Get("/api/v1/logs", app.handleListLogs)
	mux.Get("/api/v1/logs/export", app.handleExportLogs)
	mux.Delete("/api/v1/logs", app.handleDeleteLogs)

	mux.Post("/api/v1/subjects", app.handleRegisterSubject)
	mux.Get("/api/v1/subjects", app.handleListSubjects)
	mux.Get("/api/v1/subjects/{subjectId}", app.handleGetSubject)
	mux.Patch("/api/v1/subjects/{subjectId}", app.handleUpdateSubject)
	mux.Delete("/api/v1/subjects/{subjectId}", app.handleDeleteSubject)

	mux.Handle("/metrics", promhttp.Handler())

	app.logger.Debug("routes configured", "routes", chiRoutesToStrings(mux.Routes()))

	return mux
}

func chiRoutesToStrings(routes []chi.Route) []string {
	parsedRoutes := make([]string, 0, len(routes))
	for _, route := range routes {
		parsedRoutes = append(parsedRoutes, route.Pattern)
	}
	return parsedRoutes
}
