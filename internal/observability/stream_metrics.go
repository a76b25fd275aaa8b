package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StreamMetrics tracks low-level health of the event translation pipeline,
// the counters that matter when debugging a misbehaving stream rather than
// watching a dashboard.
type StreamMetrics struct {
	handoffDrops   prometheus.Counter
	unknownEvents  prometheus.Counter
	encodeFailures prometheus.Counter
	runStateSaves  prometheus.Counter
	runStateLoads  *prometheus.CounterVec
	runStateClears prometheus.Counter
	storeErrors    *prometheus.CounterVec
	widgetsEmitted *prometheus.CounterVec
}

var (
	defaultStreamMetrics     *StreamMetrics
	defaultStreamMetricsOnce sync.Once
)

// NewStreamMetrics builds a StreamMetrics recorder using the default registry.
func NewStreamMetrics() *StreamMetrics {
	defaultStreamMetricsOnce.Do(func() {
		defaultStreamMetrics = newStreamMetrics(prometheus.DefaultRegisterer)
	})
	return defaultStreamMetrics
}

// NewStreamMetricsWithRegisterer allows tests to provide a dedicated registry.
func NewStreamMetricsWithRegisterer(reg prometheus.Registerer) *StreamMetrics {
	return newStreamMetrics(reg)
}

func newStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &StreamMetrics{
		handoffDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timestep",
			Subsystem: "stream",
			Name:      "handoff_drops_total",
			Help:      "Duplicate handoff events suppressed by the per-stream dedup set",
		}),
		unknownEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timestep",
			Subsystem: "stream",
			Name:      "unknown_events_total",
			Help:      "Raw runtime events dropped because they matched no known shape",
		}),
		encodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timestep",
			Subsystem: "stream",
			Name:      "encode_failures_total",
			Help:      "Events rejected by wire validation before encoding",
		}),
		runStateSaves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timestep",
			Subsystem: "runstate",
			Name:      "saves_total",
			Help:      "Run-state checkpoints written on approval pauses",
		}),
		runStateLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timestep",
			Subsystem: "runstate",
			Name:      "loads_total",
			Help:      "Run-state lookups by result",
		}, []string{"result"}),
		runStateClears: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timestep",
			Subsystem: "runstate",
			Name:      "clears_total",
			Help:      "Run-state checkpoints cleared after successful resumes",
		}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timestep",
			Subsystem: "threadstore",
			Name:      "errors_total",
			Help:      "Thread store failures by operation",
		}, []string{"operation"}),
		widgetsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timestep",
			Subsystem: "stream",
			Name:      "widgets_emitted_total",
			Help:      "Ephemeral widgets emitted by kind",
		}, []string{"kind"}),
	}
}

// RecordHandoffDrop counts a suppressed duplicate handoff.
func (m *StreamMetrics) RecordHandoffDrop() {
	if m == nil {
		return
	}
	m.handoffDrops.Inc()
}

// RecordUnknownEvent counts a raw event that matched no known shape.
func (m *StreamMetrics) RecordUnknownEvent() {
	if m == nil {
		return
	}
	m.unknownEvents.Inc()
}

// RecordEncodeFailure counts an event rejected by wire validation.
func (m *StreamMetrics) RecordEncodeFailure() {
	if m == nil {
		return
	}
	m.encodeFailures.Inc()
}

// RecordRunStateSave counts a checkpoint write.
func (m *StreamMetrics) RecordRunStateSave() {
	if m == nil {
		return
	}
	m.runStateSaves.Inc()
}

// RecordRunStateLoad counts a checkpoint lookup. result is "hit" or "miss".
func (m *StreamMetrics) RecordRunStateLoad(result string) {
	if m == nil {
		return
	}
	m.runStateLoads.WithLabelValues(result).Inc()
}

// RecordRunStateClear counts a checkpoint removal.
func (m *StreamMetrics) RecordRunStateClear() {
	if m == nil {
		return
	}
	m.runStateClears.Inc()
}

// RecordStoreError counts a thread store failure for the given operation.
func (m *StreamMetrics) RecordStoreError(operation string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(operation).Inc()
}

// RecordWidgetEmitted counts an ephemeral widget by kind.
func (m *StreamMetrics) RecordWidgetEmitted(kind string) {
	if m == nil {
		return
	}
	m.widgetsEmitted.WithLabelValues(kind).Inc()
}
