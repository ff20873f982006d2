// Package metrics provides Prometheus metrics collection for the pattern service.
// It defines the stream, prediction, session and transport metrics exposed via
// the Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the pattern service.
type Metrics struct {
	// Stream and prediction metrics
	InputsTotal        prometheus.Counter   // Total number of symbols pushed
	PredictionsTotal   prometheus.Counter   // Predictions scored against an actual input
	CorrectTotal       prometheus.Counter   // Scored predictions that matched the input
	FallbackTotal      prometheus.Counter   // Predictions resolved by the coin flip
	ContextsLearned    prometheus.Gauge     // Distinct contexts across live sessions
	PushLatency        prometheus.Histogram // Duration of a push including scoring
	SessionAccuracy    prometheus.Histogram // Accuracy of sessions when they close
	JournalWriteErrors prometheus.Counter   // Failed observation journal writes

	// Session and transport metrics
	ActiveSessions  prometheus.Gauge   // Sessions currently held by the manager
	SessionsEvicted prometheus.Counter // Sessions removed by the idle sweeper
	WSConnections   prometheus.Gauge   // Open WebSocket streams
	ErrorsTotal     prometheus.Counter // Request errors returned to clients
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		InputsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pattern_inputs_total",
			Help: "Total number of symbols pushed",
		}),
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pattern_predictions_total",
			Help: "Total number of predictions scored against an actual input",
		}),
		CorrectTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pattern_predictions_correct_total",
			Help: "Total number of predictions that matched the next input",
		}),
		FallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pattern_predictions_fallback_total",
			Help: "Total number of predictions resolved by random fallback",
		}),
		ContextsLearned: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pattern_contexts_learned",
			Help: "Distinct contexts learned across live sessions",
		}),
		PushLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pattern_push_duration_seconds",
			Help:    "Duration of a push including scoring in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
		SessionAccuracy: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pattern_session_accuracy",
			Help:    "Prediction accuracy of sessions at close",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		JournalWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "pattern_journal_write_errors_total",
			Help: "Total number of failed observation journal writes",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pattern_active_sessions",
			Help: "Number of live sessions",
		}),
		SessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pattern_sessions_evicted_total",
			Help: "Total number of sessions evicted for inactivity",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pattern_ws_connections",
			Help: "Number of open WebSocket streams",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pattern_errors_total",
			Help: "Total number of request errors",
		}),
	}
}

// Accuracy returns correct/scored predictions since start, or 0 before the
// first scored prediction.
func (m *Metrics) Accuracy() float64 {
	total := counterValue(m.PredictionsTotal)
	if total == 0 {
		return 0
	}
	return counterValue(m.CorrectTotal) / total
}

func counterValue(c prometheus.Counter) float64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil || out.Counter == nil {
		return 0
	}
	return out.Counter.GetValue()
}
