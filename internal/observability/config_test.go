package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Metrics.Enabled {
		t.Error("metrics should be enabled by default")
	}
	if cfg.Metrics.PrometheusPort != 0 {
		t.Errorf("default prometheus port = %d, want 0 (mounted on main server)", cfg.Metrics.PrometheusPort)
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing should be disabled by default")
	}
	if cfg.Tracing.Exporter != "otlp" {
		t.Errorf("default tracing exporter = %q, want otlp", cfg.Tracing.Exporter)
	}
	if cfg.Tracing.ServiceName != "timestep-server" {
		t.Errorf("default service name = %q", cfg.Tracing.ServiceName)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("config = %+v, want defaults", cfg)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observability.yaml")
	content := `
metrics:
  enabled: false
tracing:
  enabled: true
  exporter: zipkin
  zipkin_endpoint: http://zipkin:9411/api/v2/spans
  sample_rate: 0.25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should be disabled")
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "zipkin" {
		t.Errorf("tracing config = %+v", cfg.Tracing)
	}
	if cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("sample rate = %v, want 0.25", cfg.Tracing.SampleRate)
	}
	// Unset fields keep their defaults.
	if cfg.Tracing.ServiceName != "timestep-server" {
		t.Errorf("service name = %q, want default", cfg.Tracing.ServiceName)
	}
}

func TestDisabledCollectorIsNoOp(t *testing.T) {
	m, err := NewMetricsCollector(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetricsCollector: %v", err)
	}
	// All recorders must tolerate the disabled state.
	ctx := context.Background()
	m.RecordStreamRun(ctx, "ok", 0)
	m.RecordEvent(ctx, "thread.item.added")
	m.RecordApprovalPause(ctx, "send_email")
	m.RecordApprovalResume(ctx, true)
	m.RecordThreadCreated(ctx)
	m.RecordItemPersisted(ctx, "assistant_message")
	m.IncrementActiveStreams(ctx)
	m.DecrementActiveStreams(ctx)
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestStreamMetricsWithDedicatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStreamMetricsWithRegisterer(reg)

	m.RecordHandoffDrop()
	m.RecordUnknownEvent()
	m.RecordRunStateSave()
	m.RecordRunStateLoad("hit")
	m.RecordRunStateLoad("miss")
	m.RecordRunStateClear()
	m.RecordStoreError("save_item")
	m.RecordWidgetEmitted("approval_request")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"timestep_stream_handoff_drops_total",
		"timestep_runstate_loads_total",
		"timestep_threadstore_errors_total",
		"timestep_stream_widgets_emitted_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered (got %v)", want, names)
		}
	}
}

func TestNilStreamMetricsSafe(t *testing.T) {
	var m *StreamMetrics
	m.RecordHandoffDrop()
	m.RecordRunStateLoad("hit")
	m.RecordStoreError("add_item")
}
