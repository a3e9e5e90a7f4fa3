package engine

import (
	"context"
	"time"

	"github.com/protomem/gatekeeper/internal/model"
)

// SessionStore is the durable gate log. The store owns record identity;
// Resolver is the only writer that transitions records between open and
// closed. Implementations must give read-your-writes to a single caller.
type SessionStore interface {
	// FindOpenSession returns the open record for (subjectID, day),
	// or a model.ErrNotFound error if the subject is not inside.
	FindOpenSession(ctx context.Context, subjectID string, day model.Day) (model.SessionRecord, error)

	GetSession(ctx context.Context, id model.ID) (model.SessionRecord, error)

	// InsertSession opens a new session. Fails with model.ErrConstraint
	// if an open session already exists for the same subject and day.
	InsertSession(ctx context.Context, dto InsertSessionDTO) (model.ID, error)

	// CloseSession stamps the exit. Fails with model.ErrNotFound for an
	// unknown id and model.ErrAlreadyClosed for a double exit; a failed
	// call leaves the record untouched.
	CloseSession(ctx context.Context, id model.ID, exitTime time.Time, method model.ScanMethod) error

	// ListByDay returns the day's sessions, newest entry first.
	ListByDay(ctx context.Context, day model.Day) ([]model.SessionRecord, error)

	// DayCounts returns total entries and total exits recorded for a day.
	DayCounts(ctx context.Context, day model.Day) (entries, exits int, err error)

	// OpenSessionCount counts open sessions for a subject across all days.
	OpenSessionCount(ctx context.Context, subjectID string) (int, error)

	// IterSessions streams sessions with from <= day <= to, ordered by
	// day then entry time, to fn. Iteration stops on the first error.
	IterSessions(ctx context.Context, from, to model.Day, fn func(model.SessionRecord) error) error

	// DeleteSessions purges one day, or the whole log when day is nil.
	DeleteSessions(ctx context.Context, day *model.Day) (int64, error)
}

type InsertSessionDTO struct {
	SubjectID string
	Day       model.Day
	EntryTime time.Time
	Method    model.ScanMethod
	Notes     *string
}

// SubjectStore holds registered subjects. Session records do not require
// a registered subject; the registry only enriches display output.
type SubjectStore interface {
	GetSubject(ctx context.Context, id string) (model.Subject, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	InsertSubject(ctx context.Context, subject model.Subject) error
	UpdateSubject(ctx context.Context, id string, dto UpdateSubjectDTO) error
	DeleteSubject(ctx context.Context, id string) error
}

type UpdateSubjectDTO struct {
	DisplayName *string
	Attributes  model.Attributes
	Status      *model.SubjectStatus
}
