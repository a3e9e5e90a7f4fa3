package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/protomem/gatekeeper/internal/model"
)

type ScanKind string

const (
	ScanEntered ScanKind = "entered"
	ScanExited  ScanKind = "exited"
)

type ScanResult struct {
	Kind   ScanKind            `json:"kind"`
	Record model.SessionRecord `json:"record"`
}

// Resolver turns an admitted scan into a durable entry or exit. For any
// (subject, day) at most one session is open at a time: repeated scans
// alternate entered/exited regardless of elapsed time. Sessions never
// close on their own at midnight; a session left open on a prior day
// stays open until closed by hand.
type Resolver struct {
	logger   *slog.Logger
	sessions SessionStore
	keys     *keyedMutex
}

func NewResolver(logger *slog.Logger, sessions SessionStore) *Resolver {
	return &Resolver{
		logger:   logger.With("component", "resolver"),
		sessions: sessions,
		keys:     newKeyedMutex(),
	}
}

// ResolveScan opens a session if the subject has none open today, and
// closes today's open session otherwise. The exit scan's method replaces
// the record's method, so a closed record carries the provenance of the
// scan that closed it. Lookup and write run under a per-(subject, day)
// lock, so concurrent scans of one subject serialize instead of both
// observing "no open session".
func (r *Resolver) ResolveScan(ctx context.Context, subjectID string, now time.Time, method model.ScanMethod) (ScanResult, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return ScanResult{}, model.NewError("scan", model.ErrInvalidInput)
	}

	day := model.DayOf(now)

	unlock := r.keys.lock(subjectID + "/" + day.String())
	defer unlock()

	open, err := r.sessions.FindOpenSession(ctx, subjectID, day)
	switch {
	case err == nil:
		return r.exit(ctx, open, now, method)
	case errors.Is(err, model.ErrNotFound):
		return r.enter(ctx, subjectID, day, now, method)
	default:
		return ScanResult{}, err
	}
}

func (r *Resolver) enter(ctx context.Context, subjectID string, day model.Day, now time.Time, method model.ScanMethod) (ScanResult, error) {
	id, err := r.sessions.InsertSession(ctx, InsertSessionDTO{
		SubjectID: subjectID,
		Day:       day,
		EntryTime: now,
		Method:    method,
	})
	if err != nil {
		return ScanResult{}, err
	}

	record, err := r.sessions.GetSession(ctx, id)
	if err != nil {
		return ScanResult{}, err
	}

	r.logger.Debug("scan resolved",
		"kind", ScanEntered, "subjectId", subjectID, "day", day, "sessionId", id)

	return ScanResult{Kind: ScanEntered, Record: record}, nil
}

func (r *Resolver) exit(ctx context.Context, open model.SessionRecord, now time.Time, method model.ScanMethod) (ScanResult, error) {
	if err := r.sessions.CloseSession(ctx, open.ID, now, method); err != nil {
		return ScanResult{}, err
	}

	record, err := r.sessions.GetSession(ctx, open.ID)
	if err != nil {
		return ScanResult{}, err
	}

	r.logger.Debug("scan resolved",
		"kind", ScanExited, "subjectId", open.SubjectID, "day", open.Day, "sessionId", open.ID)

	return ScanResult{Kind: ScanExited, Record: record}, nil
}
