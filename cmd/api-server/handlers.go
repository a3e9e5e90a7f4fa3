package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/protomem/gatekeeper/internal/capture"
	"github.com/protomem/gatekeeper/internal/ctxstore"
	"github.com/protomem/gatekeeper/internal/engine"
	"github.com/protomem/gatekeeper/internal/model"
	"github.com/protomem/gatekeeper/internal/request"
	"github.com/protomem/gatekeeper/internal/response"
	"github.com/protomem/gatekeeper/internal/validator"
	"github.com/protomem/gatekeeper/internal/version"
)

func (app *application) handleStatus(w http.ResponseWriter, r *http.Request) {
	data := response.JSONObject{
		"status":  "OK",
		"version": version.Get(),
	}
	if err := response.JSON(w, http.StatusOK, data); err != nil {
		app.serverError(w, r, err)
	}
}

type requestScan struct {
	SubjectID string `json:"subjectId"`
}

type responseScan struct {
	Kind    engine.ScanKind     `json:"kind"`
	Record  model.SessionRecord `json:"record"`
	Subject *model.Subject      `json:"subject,omitempty"`
}

// handleScan is the manual-entry path: synchronous, no debounce.
func (app *application) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := app.logger.With(
		_traceIDKey.String(), ctxstore.MustFrom[string](ctx, _traceIDKey),
	)

	var input requestScan
	if err := request.DecodeJSONStrict(w, r, &input); err != nil {
		app.badRequest(w, r, err)
		return
	}

	var v validator.Validator
	validateSubjectID(&v, input.SubjectID)
	if v.HasErrors() {
		app.failedValidation(w, r, v)
		return
	}

	result, err := app.resolver.ResolveScan(ctx, input.SubjectID, time.Now(), model.ScanMethodManual)
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}

	app.metrics.ObserveScan(string(result.Kind))

	resp := responseScan{Kind: result.Kind, Record: result.Record}

	// Unregistered subjects are legal; enrichment is simply omitted.
	subject, err := app.subjects.GetSubject(ctx, result.Record.SubjectID)
	switch {
	case err == nil:
		resp.Subject = &subject
	case !errors.Is(err, model.ErrNotFound):
		logger.Warn("failed to enrich scan result", "subjectId", result.Record.SubjectID, "error", err)
	}

	if err := response.JSON(w, http.StatusOK, resp); err != nil {
		app.serverError(w, r, err)
	}
}

type requestCapture struct {
	Source    string     `json:"source"`
	Value     string     `json:"value"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// handleCapture accepts a decoded identifier from a capture device and
// enqueues it for debounced processing. The device gets no scan result;
// the presentation layer polls logs and stats, so 202 is all it needs.
func (app *application) handleCapture(w http.ResponseWriter, r *http.Request) {
	var input requestCapture
	if err := request.DecodeJSONStrict(w, r, &input); err != nil {
		app.badRequest(w, r, err)
		return
	}

	var v validator.Validator
	v.CheckField(validator.NotBlank(input.Source), "source", "cannot be blank")
	v.CheckField(validator.NotBlank(input.Value), "value", "cannot be blank")
	if v.HasErrors() {
		app.failedValidation(w, r, v)
		return
	}

	at := time.Now()
	if input.Timestamp != nil {
		at = *input.Timestamp
	}

	queued := app.pipeline.Offer(capture.Signal{
		Source: input.Source,
		Value:  strings.TrimSpace(input.Value),
		At:     at,
	})

	if err := response.JSON(w, http.StatusAccepted, response.JSONObject{"queued": queued}); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleStats(w http.ResponseWriter, r *http.Request) {
	day, err := dayQueryParam(r, "date")
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	stats, err := app.aggregator.StatsFor(r.Context(), day)
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, stats); err != nil {
		app.serverError(w, r, err)
	}
}

type logEntry struct {
	model.SessionRecord
	DisplayName string `json:"displayName,omitempty"`
	Status      string `json:"status"`
}

func (app *application) handleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	day, err := dayQueryParam(r, "date")
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	records, err := app.sessions.ListByDay(ctx, day)
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}

	names, err := app.subjectNames(ctx)
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}

	entries := make([]logEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, newLogEntry(record, names[record.SubjectID]))
	}

	if q := optionalStringQueryParams(r, "q"); q != nil {
		entries = filterLogEntries(entries, *q)
	}

	data := response.JSONObject{"day": day, "logs": entries}
	if err := response.JSON(w, http.StatusOK, data); err != nil {
		app.serverError(w, r, err)
	}
}

func newLogEntry(record model.SessionRecord, displayName string) logEntry {
	status := "Left"
	if record.Open() {
		status = "Inside"
	}
	return logEntry{SessionRecord: record, DisplayName: displayName, Status: status}
}

// filterLogEntries keeps entries whose subject id, display name,
// timestamps or method contain the query, case-insensitively.
func filterLogEntries(entries []logEntry, query string) []logEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return entries
	}

	filtered := make([]logEntry, 0, len(entries))
	for _, entry := range entries {
		haystack := []string{
			entry.SubjectID,
			entry.DisplayName,
			entry.EntryTime.Format(time.TimeOnly),
			string(entry.Method),
			entry.Status,
		}
		if entry.ExitTime != nil {
			haystack = append(haystack, entry.ExitTime.Format(time.TimeOnly))
		}

		for _, field := range haystack {
			if strings.Contains(strings.ToLower(field), query) {
				filtered = append(filtered, entry)
				break
			}
		}
	}

	return filtered
}

// handleExportLogs streams sessions for a day range as CSV, reading
// from a store cursor rather than materializing the range.
func (app *application) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, err := dayQueryParam(r, "from")
	if err != nil {
		app.badRequest(w, r, err)
		return
	}
	to, err := dayQueryParam(r, "to")
	if err != nil {
		app.badRequest(w, r, err)
		return
	}
	if to < from {
		app.badRequest(w, r, fmt.Errorf("from %s is after to %s", from, to))
		return
	}

	names, err := app.subjectNames(ctx)
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}

	filename := fmt.Sprintf("gate_logs_%s_%s.csv", from, to)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"Subject ID", "Name", "Day", "Entry Time", "Exit Time", "Method", "Notes"})

	err = app.sessions.IterSessions(ctx, from, to, func(record model.SessionRecord) error {
		exitTime := ""
		if record.ExitTime != nil {
			exitTime = record.ExitTime.Format(time.TimeOnly)
		}
		notes := ""
		if record.Notes != nil {
			notes = *record.Notes
		}

		return cw.Write([]string{
			record.SubjectID,
			names[record.SubjectID],
			record.Day.String(),
			record.EntryTime.Format(time.TimeOnly),
			exitTime,
			string(record.Method),
			notes,
		})
	})
	if err != nil {
		// Headers are out; all we can do is cut the stream short.
		app.reportServerError(r, err)
		return
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		app.reportServerError(r, err)
	}
}

func (app *application) handleDeleteLogs(w http.ResponseWriter, r *http.Request) {
	var day *model.Day
	if r.URL.Query().Has("date") {
		parsed, err := dayQueryParam(r, "date")
		if err != nil {
			app.badRequest(w, r, err)
			return
		}
		day = &parsed
	}

	deleted, err := app.sessions.DeleteSessions(r.Context(), day)
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"deleted": deleted}); err != nil {
		app.serverError(w, r, err)
	}
}

type requestRegisterSubject struct {
	ID          string           `json:"id"`
	DisplayName string           `json:"displayName"`
	Attributes  model.Attributes `json:"attributes,omitempty"`
}

type responseSubject struct {
	Subject model.Subject `json:"subject"`
}

func (app *application) handleRegisterSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input requestRegisterSubject
	if err := request.DecodeJSONStrict(w, r, &input); err != nil {
		app.badRequest(w, r, err)
		return
	}

	var v validator.Validator
	validateSubjectID(&v, input.ID)
	validateDisplayName(&v, input.DisplayName)
	if v.HasErrors() {
		app.failedValidation(w, r, v)
		return
	}

	now := time.Now()
	subject := model.Subject{
		ID:           strings.TrimSpace(input.ID),
		DisplayName:  input.DisplayName,
		Attributes:   input.Attributes,
		Status:       model.SubjectStatusActive,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if subject.Attributes == nil {
		subject.Attributes = model.Attributes{}
	}

	if err := app.subjects.InsertSubject(ctx, subject); err != nil {
		app.mapModelError(w, r, err)
		return
	}

	subject, err := app.subjects.GetSubject(ctx, subject.ID)
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusCreated, responseSubject{Subject: subject}); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := app.subjects.ListSubjects(r.Context())
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"subjects": subjects}); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	subject, err := app.subjects.GetSubject(r.Context(), subjectIDFromRequest(r))
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, responseSubject{Subject: subject}); err != nil {
		app.serverError(w, r, err)
	}
}

type requestUpdateSubject struct {
	DisplayName *string              `json:"displayName,omitempty"`
	Attributes  model.Attributes     `json:"attributes,omitempty"`
	Status      *model.SubjectStatus `json:"status,omitempty"`
}

func (app *application) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID := subjectIDFromRequest(r)

	var input requestUpdateSubject
	if err := request.DecodeJSONStrict(w, r, &input); err != nil {
		app.badRequest(w, r, err)
		return
	}

	var v validator.Validator
	validateRequestUpdateSubject(&v, input)
	if v.HasErrors() {
		app.failedValidation(w, r, v)
		return
	}

	dto := engine.UpdateSubjectDTO{
		DisplayName: input.DisplayName,
		Attributes:  input.Attributes,
		Status:      input.Status,
	}

	if err := app.subjects.UpdateSubject(ctx, subjectID, dto); err != nil {
		app.mapModelError(w, r, err)
		return
	}

	subject, err := app.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, responseSubject{Subject: subject}); err != nil {
		app.serverError(w, r, err)
	}
}

// handleDeleteSubject removes a subject. Deleting a subject that still
// has an open session is allowed but reported back as a warning, so the
// caller decides whether to close the orphaned session.
func (app *application) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID := subjectIDFromRequest(r)

	if _, err := app.subjects.GetSubject(ctx, subjectID); err != nil {
		app.mapModelError(w, r, err)
		return
	}

	var warnings []string
	openCount, err := app.sessions.OpenSessionCount(ctx, subjectID)
	if err != nil {
		app.mapModelError(w, r, err)
		return
	}
	if openCount > 0 {
		warnings = append(warnings,
			fmt.Sprintf("subject has %d open session(s) that will be orphaned", openCount))
	}

	if err := app.subjects.DeleteSubject(ctx, subjectID); err != nil {
		app.mapModelError(w, r, err)
		return
	}

	data := response.JSONObject{"deleted": subjectID}
	if len(warnings) > 0 {
		data["warnings"] = warnings
	}

	if err := response.JSON(w, http.StatusOK, data); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) subjectNames(ctx context.Context) (map[string]string, error) {
	subjects, err := app.subjects.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(subjects))
	for _, subject := range subjects {
		names[subject.ID] = subject.DisplayName
	}

	return names, nil
}
