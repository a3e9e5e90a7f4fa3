package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/protomem/gatekeeper/internal/model"
)

// MemoryStore is an in-memory SessionStore and SubjectStore. It backs
// unit tests and standalone runs without Postgres; records are copied
// on the way in and out, so callers never share memory with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   model.ID
	sessions map[model.ID]model.SessionRecord
	subjects map[string]model.Subject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		sessions: make(map[model.ID]model.SessionRecord),
		subjects: make(map[string]model.Subject),
	}
}

var (
	_ SessionStore = (*MemoryStore)(nil)
	_ SubjectStore = (*MemoryStore)(nil)
)

func (s *MemoryStore) FindOpenSession(_ context.Context, subjectID string, day model.Day) (model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.sessions {
		if record.SubjectID == subjectID && record.Day == day && record.Open() {
			return record, nil
		}
	}

	return model.SessionRecord{}, model.NewError("session", model.ErrNotFound)
}

func (s *MemoryStore) GetSession(_ context.Context, id model.ID) (model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[id]
	if !ok {
		return model.SessionRecord{}, model.NewError("session", model.ErrNotFound)
	}

	return record, nil
}

func (s *MemoryStore) InsertSession(_ context.Context, dto InsertSessionDTO) (model.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.sessions {
		if record.SubjectID == dto.SubjectID && record.Day == dto.Day && record.Open() {
			return 0, model.NewError("session", model.ErrConstraint)
		}
	}

	id := s.nextID
	s.nextID++

	s.sessions[id] = model.SessionRecord{
		ID:        id,
		SubjectID: dto.SubjectID,
		Day:       dto.Day,
		EntryTime: dto.EntryTime,
		Method:    dto.Method,
		Notes:     dto.Notes,
	}

	return id, nil
}

func (s *MemoryStore) CloseSession(_ context.Context, id model.ID, exitTime time.Time, method model.ScanMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.sessions[id]
	if !ok {
		return model.NewError("session", model.ErrNotFound)
	}
	if !record.Open() {
		return model.NewError("session", model.ErrAlreadyClosed)
	}
	if exitTime.Before(record.EntryTime) {
		return model.NewError("session", model.ErrConstraint)
	}

	record.ExitTime = &exitTime
	record.Method = method
	s.sessions[id] = record

	return nil
}

func (s *MemoryStore) ListByDay(_ context.Context, day model.Day) ([]model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.SessionRecord, 0)
	for _, record := range s.sessions {
		if record.Day == day {
			records = append(records, record)
		}
	}

	slices.SortFunc(records, func(a, b model.SessionRecord) int {
		if cmp := b.EntryTime.Compare(a.EntryTime); cmp != 0 {
			return cmp
		}
		return int(b.ID) - int(a.ID)
	})

	return records, nil
}

func (s *MemoryStore) DayCounts(_ context.Context, day model.Day) (entries, exits int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.sessions {
		if record.Day != day {
			continue
		}
		entries++
		if !record.Open() {
			exits++
		}
	}

	return entries, exits, nil
}

func (s *MemoryStore) OpenSessionCount(_ context.Context, subjectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, record := range s.sessions {
		if record.SubjectID == subjectID && record.Open() {
			count++
		}
	}

	return count, nil
}

func (s *MemoryStore) IterSessions(_ context.Context, from, to model.Day, fn func(model.SessionRecord) error) error {
	s.mu.RLock()
	records := make([]model.SessionRecord, 0)
	for _, record := range s.sessions {
		if record.Day >= from && record.Day <= to {
			records = append(records, record)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(records, func(a, b model.SessionRecord) int {
		if a.Day != b.Day {
			if a.Day < b.Day {
				return -1
			}
			return 1
		}
		if cmp := a.EntryTime.Compare(b.EntryTime); cmp != 0 {
			return cmp
		}
		return int(a.ID) - int(b.ID)
	})

	for _, record := range records {
		if err := fn(record); err != nil {
			return err
		}
	}

	return nil
}

func (s *MemoryStore) DeleteSessions(_ context.Context, day *model.Day) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if day == nil {
		deleted := int64(len(s.sessions))
		maps.Clear(s.sessions)
		return deleted, nil
	}

	var deleted int64
	for id, record := range s.sessions {
		if record.Day == *day {
			delete(s.sessions, id)
			deleted++
		}
	}

	return deleted, nil
}

func (s *MemoryStore) GetSubject(_ context.Context, id string) (model.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subject, ok := s.subjects[id]
	if !ok {
		return model.Subject{}, model.NewError("subject", model.ErrNotFound)
	}

	return subject, nil
}

func (s *MemoryStore) ListSubjects(_ context.Context) ([]model.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subjects := maps.Values(s.subjects)
	slices.SortFunc(subjects, func(a, b model.Subject) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	return subjects, nil
}

func (s *MemoryStore) InsertSubject(_ context.Context, subject model.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[subject.ID]; ok {
		return model.NewError("subject", model.ErrExists)
	}

	s.subjects[subject.ID] = subject

	return nil
}

func (s *MemoryStore) UpdateSubject(_ context.Context, id string, dto UpdateSubjectDTO) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subject, ok := s.subjects[id]
	if !ok {
		return model.NewError("subject", model.ErrNotFound)
	}

	if dto.DisplayName != nil {
		subject.DisplayName = *dto.DisplayName
	}
	if dto.Attributes != nil {
		subject.Attributes = dto.Attributes
	}
	if dto.Status != nil {
		subject.Status = *dto.Status
	}
	subject.UpdatedAt = time.Now()

	s.subjects[id] = subject

	return nil
}

func (s *MemoryStore) DeleteSubject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[id]; !ok {
		return model.NewError("subject", model.ErrNotFound)
	}

	delete(s.subjects, id)

	return nil
}
