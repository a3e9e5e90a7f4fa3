package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/protomem/gatekeeper/internal/model"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
	now   time.Time
	day   model.Day
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)
	s.day = model.DayOf(s.now)
}

func (s *MemoryStoreSuite) insertSession(subjectID string, entry time.Time) model.ID {
	id, err := s.store.InsertSession(s.ctx, InsertSessionDTO{
		SubjectID: subjectID,
		Day:       model.DayOf(entry),
		EntryTime: entry,
		Method:    model.ScanMethodScanned,
	})
	s.Require().NoError(err)
	return id
}

func (s *MemoryStoreSuite) TestSessionRoundTrip() {
	id := s.insertSession("S1", s.now)

	open, err := s.store.FindOpenSession(s.ctx, "S1", s.day)
	s.Require().NoError(err)
	s.Equal(id, open.ID)
	s.True(open.Open())

	exit := s.now.Add(8 * time.Hour)
	s.Require().NoError(s.store.CloseSession(s.ctx, id, exit, model.ScanMethodManual))

	record, err := s.store.GetSession(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(record.ExitTime)
	s.False(record.EntryTime.After(*record.ExitTime))
	s.Equal(model.ScanMethodManual, record.Method)

	_, err = s.store.FindOpenSession(s.ctx, "S1", s.day)
	s.Require().ErrorIs(err, model.ErrNotFound)
}

func (s *MemoryStoreSuite) TestDoubleCloseFails() {
	id := s.insertSession("S1", s.now)

	firstExit := s.now.Add(time.Hour)
	s.Require().NoError(s.store.CloseSession(s.ctx, id, firstExit, model.ScanMethodScanned))

	err := s.store.CloseSession(s.ctx, id, s.now.Add(2*time.Hour), model.ScanMethodScanned)
	s.Require().ErrorIs(err, model.ErrAlreadyClosed)

	// The failed call must leave the record untouched.
	record, err := s.store.GetSession(s.ctx, id)
	s.Require().NoError(err)
	s.True(record.ExitTime.Equal(firstExit))
}

func (s *MemoryStoreSuite) TestCloseUnknownSession() {
	err := s.store.CloseSession(s.ctx, 42, s.now, model.ScanMethodManual)
	s.Require().ErrorIs(err, model.ErrNotFound)
}

func (s *MemoryStoreSuite) TestCloseBeforeEntryFails() {
	id := s.insertSession("S1", s.now)

	err := s.store.CloseSession(s.ctx, id, s.now.Add(-time.Minute), model.ScanMethodManual)
	s.Require().ErrorIs(err, model.ErrConstraint)
}

func (s *MemoryStoreSuite) TestSecondOpenSessionRejected() {
	s.insertSession("S1", s.now)

	_, err := s.store.InsertSession(s.ctx, InsertSessionDTO{
		SubjectID: "S1",
		Day:       s.day,
		EntryTime: s.now.Add(time.Minute),
		Method:    model.ScanMethodScanned,
	})
	s.Require().ErrorIs(err, model.ErrConstraint)
}

func (s *MemoryStoreSuite) TestListByDayNewestFirst() {
	s.insertSession("S1", s.now)
	s.insertSession("S2", s.now.Add(time.Hour))
	s.insertSession("S3", s.now.Add(2*time.Hour))

	records, err := s.store.ListByDay(s.ctx, s.day)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal("S3", records[0].SubjectID)
	s.Equal("S1", records[2].SubjectID)
}

func (s *MemoryStoreSuite) TestIterSessionsRange() {
	day1 := s.now
	day2 := s.now.AddDate(0, 0, 1)
	day3 := s.now.AddDate(0, 0, 2)

	s.insertSession("S1", day1)
	s.insertSession("S2", day2)
	s.insertSession("S3", day3)

	var seen []string
	err := s.store.IterSessions(s.ctx, model.DayOf(day1), model.DayOf(day2), func(record model.SessionRecord) error {
		seen = append(seen, record.SubjectID)
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]string{"S1", "S2"}, seen)
}

func (s *MemoryStoreSuite) TestDeleteSessions() {
	day1 := s.now
	day2 := s.now.AddDate(0, 0, 1)

	s.insertSession("S1", day1)
	s.insertSession("S2", day1.Add(time.Hour))
	s.insertSession("S3", day2)

	day := model.DayOf(day1)
	deleted, err := s.store.DeleteSessions(s.ctx, &day)
	s.Require().NoError(err)
	s.EqualValues(2, deleted)

	deleted, err = s.store.DeleteSessions(s.ctx, nil)
	s.Require().NoError(err)
	s.EqualValues(1, deleted)
}

func (s *MemoryStoreSuite) newSubject(id, name string) model.Subject {
	return model.Subject{
		ID:           id,
		DisplayName:  name,
		Attributes:   model.Attributes{"department": "CS"},
		Status:       model.SubjectStatusActive,
		RegisteredAt: s.now,
		UpdatedAt:    s.now,
	}
}

func (s *MemoryStoreSuite) TestSubjectCRUD() {
	s.Require().NoError(s.store.InsertSubject(s.ctx, s.newSubject("S1", "Ada Lovelace")))

	err := s.store.InsertSubject(s.ctx, s.newSubject("S1", "Someone Else"))
	s.Require().ErrorIs(err, model.ErrExists)

	subject, err := s.store.GetSubject(s.ctx, "S1")
	s.Require().NoError(err)
	s.Equal("Ada Lovelace", subject.DisplayName)

	newName := "Ada King"
	inactive := model.SubjectStatusInactive
	err = s.store.UpdateSubject(s.ctx, "S1", UpdateSubjectDTO{DisplayName: &newName, Status: &inactive})
	s.Require().NoError(err)

	subject, err = s.store.GetSubject(s.ctx, "S1")
	s.Require().NoError(err)
	s.Equal("Ada King", subject.DisplayName)
	s.Equal(model.SubjectStatusInactive, subject.Status)
	s.Equal(model.Attributes{"department": "CS"}, subject.Attributes)

	s.Require().NoError(s.store.DeleteSubject(s.ctx, "S1"))

	_, err = s.store.GetSubject(s.ctx, "S1")
	s.Require().ErrorIs(err, model.ErrNotFound)
}

func (s *MemoryStoreSuite) TestSubjectUpdateUnknown() {
	name := "Nobody"
	err := s.store.UpdateSubject(s.ctx, "S404", UpdateSubjectDTO{DisplayName: &name})
	s.Require().ErrorIs(err, model.ErrNotFound)
}

func (s *MemoryStoreSuite) TestListSubjectsOrderedByID() {
	s.Require().NoError(s.store.InsertSubject(s.ctx, s.newSubject("S3", "Three")))
	s.Require().NoError(s.store.InsertSubject(s.ctx, s.newSubject("S1", "One")))
	s.Require().NoError(s.store.InsertSubject(s.ctx, s.newSubject("S2", "Two")))

	subjects, err := s.store.ListSubjects(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(subjects, 3)
	s.Equal("S1", subjects[0].ID)
	s.Equal("S3", subjects[2].ID)
}
