package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ScansResolved     *prometheus.CounterVec
	DebounceDrops     prometheus.Counter
	CaptureQueueDrops prometheus.Counter
	CaptureQueueDepth prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ScansResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_scans_resolved_total",
			Help: "Total number of scans resolved, by result kind",
		}, []string{"kind"}),
		DebounceDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_debounce_drops_total",
			Help: "Total number of capture triggers suppressed by the debounce guard",
		}),
		CaptureQueueDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_capture_queue_drops_total",
			Help: "Total number of capture signals dropped because the queue was full",
		}),
		CaptureQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_capture_queue_depth",
			Help: "Current number of capture signals waiting in the queue",
		}),
	}
}

func (m *Metrics) ObserveScan(kind string) {
	m.ScansResolved.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveDebounceDrop() {
	m.DebounceDrops.Inc()
}

func (m *Metrics) ObserveQueueDrop() {
	m.CaptureQueueDrops.Inc()
}

func (m *Metrics) SetQueueDepth(depth int) {
	m.CaptureQueueDepth.Set(float64(depth))
}
