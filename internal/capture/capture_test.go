package capture

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protomem/gatekeeper/internal/engine"
	"github.com/protomem/gatekeeper/internal/metrics"
)

func newTestPipeline(t *testing.T, queueSize int) (*Pipeline, *engine.MemoryStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := engine.NewMemoryStore()
	guard := engine.NewGuard(3 * time.Second)
	resolver := engine.NewResolver(logger, store)
	mtr := metrics.New(prometheus.NewRegistry())

	return NewPipeline(logger, guard, resolver, mtr, queueSize), store
}

func TestPipelineDebouncesRepeatedSignals(t *testing.T) {
	pipeline, _ := newTestPipeline(t, 8)

	results := make(chan engine.ScanResult, 8)
	pipeline.OnResult = func(result engine.ScanResult) {
		results <- result
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pipeline.Run(ctx)

	base := time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)

	// A capture source re-reports the same value every frame; only the
	// first signal within the interval becomes a gate event.
	require.True(t, pipeline.Offer(Signal{Source: "camera-0", Value: "S1", At: base}))
	require.True(t, pipeline.Offer(Signal{Source: "camera-0", Value: "S1", At: base.Add(200 * time.Millisecond)}))
	require.True(t, pipeline.Offer(Signal{Source: "camera-0", Value: "S1", At: base.Add(400 * time.Millisecond)}))

	select {
	case result := <-results:
		assert.Equal(t, engine.ScanEntered, result.Kind)
		assert.Equal(t, "S1", result.Record.SubjectID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resolved scan")
	}

	select {
	case result := <-results:
		t.Fatalf("expected repeats to be suppressed, got %v", result.Kind)
	case <-time.After(200 * time.Millisecond):
	}

	// Past the interval the same value toggles the session to an exit.
	require.True(t, pipeline.Offer(Signal{Source: "camera-0", Value: "S1", At: base.Add(4 * time.Second)}))

	select {
	case result := <-results:
		assert.Equal(t, engine.ScanExited, result.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit scan")
	}
}

func TestPipelineFullQueueDrops(t *testing.T) {
	pipeline, _ := newTestPipeline(t, 2)

	// Not running, so the queue only drains on capacity.
	base := time.Now()
	assert.True(t, pipeline.Offer(Signal{Source: "camera-0", Value: "S1", At: base}))
	assert.True(t, pipeline.Offer(Signal{Source: "camera-0", Value: "S2", At: base}))
	assert.False(t, pipeline.Offer(Signal{Source: "camera-0", Value: "S3", At: base}))
}

func TestPipelineStopsOnCancel(t *testing.T) {
	pipeline, _ := newTestPipeline(t, 2)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		pipeline.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}
