// Package capture decouples scan producers from the engine. A capture
// device reports the same decoded value on every sampling cycle, tens of
// times per second; producers push discrete signals into a bounded queue
// and a single consumer applies the debounce guard before resolving, so
// producer cadence never dictates processing cadence.
package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/protomem/gatekeeper/internal/engine"
	"github.com/protomem/gatekeeper/internal/metrics"
	"github.com/protomem/gatekeeper/internal/model"
)

const DefaultQueueSize = 64

// Signal is one decoded identifier from a capture source.
type Signal struct {
	Source string
	Value  string
	At     time.Time
}

type Pipeline struct {
	logger   *slog.Logger
	guard    *engine.Guard
	resolver *engine.Resolver
	metrics  *metrics.Metrics
	queue    chan Signal

	// OnResult, when set before Run, receives every resolved scan.
	OnResult func(engine.ScanResult)
}

func NewPipeline(logger *slog.Logger, guard *engine.Guard, resolver *engine.Resolver, mtr *metrics.Metrics, queueSize int) *Pipeline {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Pipeline{
		logger:   logger.With("component", "capture"),
		guard:    guard,
		resolver: resolver,
		metrics:  mtr,
		queue:    make(chan Signal, queueSize),
	}
}

// Offer enqueues a signal without blocking. A full queue drops the
// signal: capture sources re-send continuously, so loss is harmless.
func (p *Pipeline) Offer(sig Signal) bool {
	select {
	case p.queue <- sig:
		if p.metrics != nil {
			p.metrics.SetQueueDepth(len(p.queue))
		}
		return true
	default:
		if p.metrics != nil {
			p.metrics.ObserveQueueDrop()
		}
		p.logger.Warn("capture queue full, signal dropped", "source", sig.Source)
		return false
	}
}

// Run consumes the queue until ctx is canceled. Signals that pass the
// debounce guard are resolved sequentially; the engine stays a single
// logical writer per gate.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-p.queue:
			if p.metrics != nil {
				p.metrics.SetQueueDepth(len(p.queue))
			}
			p.process(ctx, sig)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, sig Signal) {
	if !p.guard.Admit(sig.Source, sig.Value, sig.At) {
		if p.metrics != nil {
			p.metrics.ObserveDebounceDrop()
		}
		return
	}

	result, err := p.resolver.ResolveScan(ctx, sig.Value, sig.At, model.ScanMethodScanned)
	if err != nil {
		p.logger.Warn("failed to resolve captured scan",
			"source", sig.Source, "value", sig.Value, "error", err)
		return
	}

	if p.metrics != nil {
		p.metrics.ObserveScan(string(result.Kind))
	}

	p.logger.Info("captured scan resolved",
		"source", sig.Source, "subjectId", result.Record.SubjectID, "kind", result.Kind)

	if p.OnResult != nil {
		p.OnResult(result)
	}
}
