package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_CounterOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	counters := []struct {
		name string
		inc  func()
		c    prometheus.Counter
	}{
		{"inputs", wrapper.InputsInc, metrics.InputsTotal},
		{"predictions", wrapper.PredictionsInc, metrics.PredictionsTotal},
		{"correct", wrapper.CorrectInc, metrics.CorrectTotal},
		{"fallback", wrapper.FallbackInc, metrics.FallbackTotal},
		{"journal errors", wrapper.JournalErrorsInc, metrics.JournalWriteErrors},
		{"evicted", wrapper.SessionsEvictedInc, metrics.SessionsEvicted},
		{"errors via interface", wrapper.Errors().Inc, metrics.ErrorsTotal},
	}

	for _, tc := range counters {
		t.Run(tc.name, func(t *testing.T) {
			before := testutil.ToFloat64(tc.c)
			tc.inc()
			tc.inc()
			if got := testutil.ToFloat64(tc.c); got != before+2 {
				t.Errorf("Expected counter value %f, got %f", before+2, got)
			}
		})
	}
}

func TestMetricsWrapper_GaugeOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.ActiveSessionsSet(3)
	if v := testutil.ToFloat64(metrics.ActiveSessions); v != 3 {
		t.Errorf("Expected active sessions 3, got %f", v)
	}

	wrapper.ContextsLearnedAdd(10)
	wrapper.ContextsLearnedAdd(-4)
	if v := testutil.ToFloat64(metrics.ContextsLearned); v != 6 {
		t.Errorf("Expected contexts learned 6, got %f", v)
	}

	ws := wrapper.WSConnections()
	ws.Add(1)
	ws.Add(1)
	ws.Add(-1)
	if v := testutil.ToFloat64(metrics.WSConnections); v != 1 {
		t.Errorf("Expected 1 ws connection, got %f", v)
	}
	ws.Set(0)
	if v := testutil.ToFloat64(metrics.WSConnections); v != 0 {
		t.Errorf("Expected 0 ws connections, got %f", v)
	}
}

func TestMetricsWrapper_HistogramOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.PushLatencyObserve(0.0001)
	wrapper.SessionAccuracyObserve(0.75)

	if n := testutil.CollectAndCount(metrics.PushLatency); n != 1 {
		t.Errorf("Expected 1 push latency series, got %d", n)
	}
	if n := testutil.CollectAndCount(metrics.SessionAccuracy); n != 1 {
		t.Errorf("Expected 1 session accuracy series, got %d", n)
	}
}

func TestMetrics_Accuracy(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)

	if acc := metrics.Accuracy(); acc != 0 {
		t.Errorf("Expected accuracy 0 with no predictions, got %f", acc)
	}

	for i := 0; i < 4; i++ {
		metrics.PredictionsTotal.Inc()
	}
	for i := 0; i < 3; i++ {
		metrics.CorrectTotal.Inc()
	}
	if acc := metrics.Accuracy(); acc != 0.75 {
		t.Errorf("Expected accuracy 0.75, got %f", acc)
	}
	if acc := NewWrapper(metrics).Accuracy(); acc != 0.75 {
		t.Errorf("Expected wrapper accuracy 0.75, got %f", acc)
	}
}

func TestNewWithRegistry_Registers(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewWithRegistry(registry)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	// histograms and gauges/counters report even at zero
	if len(families) != 12 {
		t.Errorf("Expected 12 metric families, got %d", len(families))
	}
}
