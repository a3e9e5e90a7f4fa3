package engine

import (
	"sync"
	"time"
)

// DefaultMinInterval matches the scan cooldown of a typical capture
// device that re-reports the same decoded value on every frame.
const DefaultMinInterval = 3 * time.Second

const guardPruneThreshold = 1024

type guardKey struct {
	source string
	value  string
}

// Guard suppresses repeated triggers of the same (source, value) pair
// arriving faster than a minimum interval. State is per pair, so two
// different subjects presented back-to-back never suppress each other.
// Manual entry bypasses the guard entirely.
type Guard struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        map[guardKey]time.Time
}

func NewGuard(minInterval time.Duration) *Guard {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Guard{
		minInterval: minInterval,
		last:        make(map[guardKey]time.Time),
	}
}

// Admit reports whether a trigger should pass, recording now as the last
// admitted time when it does. A trigger is admitted if no prior trigger
// for the pair exists or at least minInterval has elapsed since the last
// admitted one.
func (g *Guard) Admit(sourceKey, rawValue string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := guardKey{source: sourceKey, value: rawValue}
	if last, ok := g.last[key]; ok && now.Sub(last) < g.minInterval {
		return false
	}

	if len(g.last) >= guardPruneThreshold {
		g.prune(now)
	}

	g.last[key] = now
	return true
}

// prune drops entries old enough that they can no longer suppress
// anything. Caller holds g.mu.
func (g *Guard) prune(now time.Time) {
	for key, last := range g.last {
		if now.Sub(last) >= g.minInterval {
			delete(g.last, key)
		}
	}
}
