package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/protomem/gatekeeper/internal/model"
)

type ResolverSuite struct {
	suite.Suite
	store    *MemoryStore
	resolver *Resolver
	ctx      context.Context
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.resolver = NewResolver(discardLogger(), s.store)
	s.ctx = context.Background()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *ResolverSuite) TestAlternation() {
	now := time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		result, err := s.resolver.ResolveScan(s.ctx, "S1", now.Add(time.Duration(i)*time.Minute), model.ScanMethodManual)
		s.Require().NoError(err)

		if i%2 == 0 {
			s.Equal(ScanEntered, result.Kind)
			s.True(result.Record.Open())
		} else {
			s.Equal(ScanExited, result.Kind)
			s.Require().NotNil(result.Record.ExitTime)
			s.False(result.Record.EntryTime.After(*result.Record.ExitTime))
		}
	}

	count, err := s.store.OpenSessionCount(s.ctx, "S1")
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ResolverSuite) TestEntryThenExitScenario() {
	entry := time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)
	exit := time.Date(2025, time.September, 1, 17, 30, 0, 0, time.UTC)

	entered, err := s.resolver.ResolveScan(s.ctx, "S1", entry, model.ScanMethodScanned)
	s.Require().NoError(err)
	s.Equal(ScanEntered, entered.Kind)
	s.True(entered.Record.Open())

	exited, err := s.resolver.ResolveScan(s.ctx, "S1", exit, model.ScanMethodScanned)
	s.Require().NoError(err)
	s.Equal(ScanExited, exited.Kind)
	s.Equal(entered.Record.ID, exited.Record.ID)
	s.Require().NotNil(exited.Record.ExitTime)
	s.True(exited.Record.ExitTime.Equal(exit))

	stats, err := NewAggregator(s.store).StatsFor(s.ctx, model.DayOf(entry))
	s.Require().NoError(err)
	s.Equal(1, stats.TotalEntries)
	s.Equal(1, stats.TotalExits)
	s.Equal(0, stats.CurrentlyInside)
}

func (s *ResolverSuite) TestBlankSubjectID() {
	now := time.Now()

	for _, subjectID := range []string{"", "   ", "\t\n"} {
		_, err := s.resolver.ResolveScan(s.ctx, subjectID, now, model.ScanMethodManual)
		s.Require().ErrorIs(err, model.ErrInvalidInput)
	}
}

func (s *ResolverSuite) TestUnregisteredSubjectAllowed() {
	// No registry membership is required to pass the gate.
	result, err := s.resolver.ResolveScan(s.ctx, "S404", time.Now(), model.ScanMethodScanned)
	s.Require().NoError(err)
	s.Equal(ScanEntered, result.Kind)
	s.Equal("S404", result.Record.SubjectID)
}

func (s *ResolverSuite) TestExitMethodReplacesEntryMethod() {
	now := time.Now()

	entered, err := s.resolver.ResolveScan(s.ctx, "S1", now, model.ScanMethodScanned)
	s.Require().NoError(err)
	s.Equal(model.ScanMethodScanned, entered.Record.Method)

	exited, err := s.resolver.ResolveScan(s.ctx, "S1", now.Add(time.Hour), model.ScanMethodManual)
	s.Require().NoError(err)
	s.Equal(model.ScanMethodManual, exited.Record.Method)
}

func (s *ResolverSuite) TestOpenSessionSurvivesMidnight() {
	lateEvening := time.Date(2025, time.September, 1, 23, 0, 0, 0, time.UTC)
	afterMidnight := time.Date(2025, time.September, 2, 0, 30, 0, 0, time.UTC)

	first, err := s.resolver.ResolveScan(s.ctx, "S1", lateEvening, model.ScanMethodScanned)
	s.Require().NoError(err)
	s.Equal(ScanEntered, first.Kind)

	// A new day means a new session; yesterday's stays open.
	second, err := s.resolver.ResolveScan(s.ctx, "S1", afterMidnight, model.ScanMethodScanned)
	s.Require().NoError(err)
	s.Equal(ScanEntered, second.Kind)
	s.NotEqual(first.Record.ID, second.Record.ID)
	s.Equal(model.Day("2025-09-02"), second.Record.Day)

	prior, err := s.store.GetSession(s.ctx, first.Record.ID)
	s.Require().NoError(err)
	s.True(prior.Open())
	s.Equal(model.Day("2025-09-01"), prior.Day)

	count, err := s.store.OpenSessionCount(s.ctx, "S1")
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *ResolverSuite) TestDayFixedAtCreation() {
	entry := time.Date(2025, time.September, 1, 23, 50, 0, 0, time.UTC)
	exit := time.Date(2025, time.September, 1, 23, 59, 0, 0, time.UTC)

	entered, err := s.resolver.ResolveScan(s.ctx, "S1", entry, model.ScanMethodManual)
	s.Require().NoError(err)

	exited, err := s.resolver.ResolveScan(s.ctx, "S1", exit, model.ScanMethodManual)
	s.Require().NoError(err)
	s.Equal(entered.Record.Day, exited.Record.Day)
}

// TestConcurrentScansSameSubject drives many goroutines through the
// resolver for one subject and day, then verifies the one-open-session
// invariant and that entries and exits alternated exactly.
func (s *ResolverSuite) TestConcurrentScansSameSubject() {
	const scans = 9

	now := time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)
	day := model.DayOf(now)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		entered int
		exited  int
	)

	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, err := s.resolver.ResolveScan(s.ctx, "S1", now, model.ScanMethodScanned)
			s.Require().NoError(err)

			mu.Lock()
			defer mu.Unlock()
			switch result.Kind {
			case ScanEntered:
				entered++
			case ScanExited:
				exited++
			}
		}()
	}
	wg.Wait()

	s.Equal(scans, entered+exited)
	s.Equal(entered, exited+1) // odd scan count ends inside

	count, err := s.store.OpenSessionCount(s.ctx, "S1")
	s.Require().NoError(err)
	s.Equal(1, count)

	entries, exits, err := s.store.DayCounts(s.ctx, day)
	s.Require().NoError(err)
	s.Equal(entered, entries)
	s.Equal(exited, exits)
}

func (s *ResolverSuite) TestConcurrentScansDistinctSubjects() {
	const subjects = 8

	now := time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < subjects; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			subjectID := string(rune('A' + n))
			result, err := s.resolver.ResolveScan(s.ctx, subjectID, now, model.ScanMethodScanned)
			s.Require().NoError(err)
			s.Equal(ScanEntered, result.Kind)
		}(i)
	}
	wg.Wait()

	entries, exits, err := s.store.DayCounts(s.ctx, model.DayOf(now))
	s.Require().NoError(err)
	s.Equal(subjects, entries)
	s.Zero(exits)
}
