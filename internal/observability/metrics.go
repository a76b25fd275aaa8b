package observability

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages the streaming pipeline's metrics.
type MetricsCollector struct {
	meter metric.Meter

	// Stream metrics
	streamRuns     metric.Int64Counter
	streamEvents   metric.Int64Counter
	streamErrors   metric.Int64Counter
	streamDuration metric.Float64Histogram
	streamsActive  metric.Int64UpDownCounter

	// Approval pause/resume metrics
	approvalPauses  metric.Int64Counter
	approvalResumes metric.Int64Counter

	// Thread metrics
	threadsCreated metric.Int64Counter
	itemsPersisted metric.Int64Counter

	// Server for Prometheus scraping
	prometheusServer *http.Server
}

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port" mapstructure:"prometheus_port"`
}

// NewMetricsCollector creates a metrics collector. With Enabled false every
// recording method is a no-op.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("timestep")

	streamRuns, err := meter.Int64Counter(
		"timestep.stream.runs.total",
		metric.WithDescription("Total number of streaming runs started"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream_runs counter: %w", err)
	}

	streamEvents, err := meter.Int64Counter(
		"timestep.stream.events.total",
		metric.WithDescription("Total protocol events emitted to clients"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream_events counter: %w", err)
	}

	streamErrors, err := meter.Int64Counter(
		"timestep.stream.errors.total",
		metric.WithDescription("Total streams that resolved to a terminal error event"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream_errors counter: %w", err)
	}

	streamDuration, err := meter.Float64Histogram(
		"timestep.stream.duration",
		metric.WithDescription("Streaming run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream_duration histogram: %w", err)
	}

	streamsActive, err := meter.Int64UpDownCounter(
		"timestep.streams.active",
		metric.WithDescription("Number of in-flight streaming responses"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streams_active gauge: %w", err)
	}

	approvalPauses, err := meter.Int64Counter(
		"timestep.approvals.pauses.total",
		metric.WithDescription("Total runs paused pending a tool approval"),
		metric.WithUnit("{pause}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create approval_pauses counter: %w", err)
	}

	approvalResumes, err := meter.Int64Counter(
		"timestep.approvals.resumes.total",
		metric.WithDescription("Total runs resumed from a saved checkpoint"),
		metric.WithUnit("{resume}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create approval_resumes counter: %w", err)
	}

	threadsCreated, err := meter.Int64Counter(
		"timestep.threads.created.total",
		metric.WithDescription("Total chat threads created"),
		metric.WithUnit("{thread}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create threads_created counter: %w", err)
	}

	itemsPersisted, err := meter.Int64Counter(
		"timestep.items.persisted.total",
		metric.WithDescription("Total thread items written to the store"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create items_persisted counter: %w", err)
	}

	collector := &MetricsCollector{
		meter:           meter,
		streamRuns:      streamRuns,
		streamEvents:    streamEvents,
		streamErrors:    streamErrors,
		streamDuration:  streamDuration,
		streamsActive:   streamsActive,
		approvalPauses:  approvalPauses,
		approvalResumes: approvalResumes,
		threadsCreated:  threadsCreated,
		itemsPersisted:  itemsPersisted,
	}

	if config.PrometheusPort > 0 {
		if err := collector.StartPrometheusServer(config.PrometheusPort); err != nil {
			return nil, fmt.Errorf("failed to start prometheus server: %w", err)
		}
	}

	return collector, nil
}

// Handler returns the scrape handler for mounting on an existing router.
func (m *MetricsCollector) Handler() http.Handler {
	return promclient.Handler()
}

// StartPrometheusServer starts a standalone Prometheus metrics server.
func (m *MetricsCollector) StartPrometheusServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())

	m.prometheusServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Printf("Prometheus metrics server listening on :%d", port)
		if err := m.prometheusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Prometheus server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics collector.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m.prometheusServer != nil {
		return m.prometheusServer.Shutdown(ctx)
	}
	return nil
}

// RecordStreamRun records one completed streaming run.
func (m *MetricsCollector) RecordStreamRun(ctx context.Context, outcome string, duration time.Duration) {
	if m.streamRuns == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}
	m.streamRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.streamDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if outcome == "error" {
		m.streamErrors.Add(ctx, 1)
	}
}

// RecordEvent records one protocol event emitted to a client.
func (m *MetricsCollector) RecordEvent(ctx context.Context, eventType string) {
	if m.streamEvents == nil {
		return
	}
	m.streamEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordApprovalPause records a run pausing for a tool approval.
func (m *MetricsCollector) RecordApprovalPause(ctx context.Context, toolName string) {
	if m.approvalPauses == nil {
		return
	}
	m.approvalPauses.Add(ctx, 1, metric.WithAttributes(attribute.String("tool_name", toolName)))
}

// RecordApprovalResume records a run resuming from its checkpoint.
func (m *MetricsCollector) RecordApprovalResume(ctx context.Context, approved bool) {
	if m.approvalResumes == nil {
		return
	}
	m.approvalResumes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("approved", approved)))
}

// RecordThreadCreated records a new thread.
func (m *MetricsCollector) RecordThreadCreated(ctx context.Context) {
	if m.threadsCreated == nil {
		return
	}
	m.threadsCreated.Add(ctx, 1)
}

// RecordItemPersisted records a thread item written to the store.
func (m *MetricsCollector) RecordItemPersisted(ctx context.Context, itemType string) {
	if m.itemsPersisted == nil {
		return
	}
	m.itemsPersisted.Add(ctx, 1, metric.WithAttributes(attribute.String("item_type", itemType)))
}

// IncrementActiveStreams increments the in-flight stream gauge.
func (m *MetricsCollector) IncrementActiveStreams(ctx context.Context) {
	if m.streamsActive == nil {
		return
	}
	m.streamsActive.Add(ctx, 1)
}

// DecrementActiveStreams decrements the in-flight stream gauge.
func (m *MetricsCollector) DecrementActiveStreams(ctx context.Context) {
	if m.streamsActive == nil {
		return
	}
	m.streamsActive.Add(ctx, -1)
}
