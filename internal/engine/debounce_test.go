package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGuardAdmit(t *testing.T) {
	base := time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)

	t.Run("admits first trigger", func(t *testing.T) {
		guard := NewGuard(3 * time.Second)
		assert.True(t, guard.Admit("camera-0", "S1", base))
	})

	t.Run("suppresses repeat inside the interval", func(t *testing.T) {
		guard := NewGuard(3 * time.Second)
		assert.True(t, guard.Admit("camera-0", "S1", base))
		assert.False(t, guard.Admit("camera-0", "S1", base.Add(2900*time.Millisecond)))
	})

	t.Run("admits repeat past the interval", func(t *testing.T) {
		guard := NewGuard(3 * time.Second)
		assert.True(t, guard.Admit("camera-0", "S1", base))
		assert.True(t, guard.Admit("camera-0", "S1", base.Add(3100*time.Millisecond)))
	})

	t.Run("suppressed trigger does not reset the clock", func(t *testing.T) {
		guard := NewGuard(3 * time.Second)
		assert.True(t, guard.Admit("camera-0", "S1", base))
		assert.False(t, guard.Admit("camera-0", "S1", base.Add(2*time.Second)))
		// 3.1s after the admitted trigger, only 1.1s after the dropped one.
		assert.True(t, guard.Admit("camera-0", "S1", base.Add(3100*time.Millisecond)))
	})

	t.Run("different values never suppress each other", func(t *testing.T) {
		guard := NewGuard(3 * time.Second)
		assert.True(t, guard.Admit("camera-0", "S1", base))
		assert.True(t, guard.Admit("camera-0", "S2", base.Add(100*time.Millisecond)))
	})

	t.Run("different sources track independently", func(t *testing.T) {
		guard := NewGuard(3 * time.Second)
		assert.True(t, guard.Admit("camera-0", "S1", base))
		assert.True(t, guard.Admit("camera-1", "S1", base.Add(100*time.Millisecond)))
	})
}

func TestGuardPrune(t *testing.T) {
	base := time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)
	guard := NewGuard(3 * time.Second)

	for i := 0; i < guardPruneThreshold; i++ {
		guard.Admit("camera-0", fmt.Sprintf("value-%d", i), base.Add(time.Duration(i)*time.Millisecond))
	}
	guard.Admit("camera-0", "fresh", base.Add(time.Hour))

	guard.mu.Lock()
	defer guard.mu.Unlock()
	assert.Less(t, len(guard.last), guardPruneThreshold)
}
