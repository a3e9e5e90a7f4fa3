package engine

import (
	"context"

	"github.com/protomem/gatekeeper/internal/model"
)

// Aggregator derives daily statistics from the session log. Stats are
// recomputed from the log on every call rather than kept as counters;
// a day's log is bounded by the subject population, and a snapshot may
// lag a concurrent close by a moment without being wrong.
type Aggregator struct {
	sessions SessionStore
}

func NewAggregator(sessions SessionStore) *Aggregator {
	return &Aggregator{sessions: sessions}
}

func (a *Aggregator) StatsFor(ctx context.Context, day model.Day) (model.DayStats, error) {
	entries, exits, err := a.sessions.DayCounts(ctx, day)
	if err != nil {
		return model.DayStats{}, err
	}

	return model.DayStats{
		Day:             day,
		TotalEntries:    entries,
		TotalExits:      exits,
		CurrentlyInside: entries - exits,
	}, nil
}
