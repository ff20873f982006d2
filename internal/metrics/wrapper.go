package metrics

import "github.com/prometheus/client_golang/prometheus"

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

// MetricsWrapper adapts Metrics to the session and server metric interfaces
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) InputsInc() {
	w.m.InputsTotal.Inc()
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *MetricsWrapper) CorrectInc() {
	w.m.CorrectTotal.Inc()
}

func (w *MetricsWrapper) FallbackInc() {
	w.m.FallbackTotal.Inc()
}

func (w *MetricsWrapper) ContextsLearnedAdd(v float64) {
	w.m.ContextsLearned.Add(v)
}

func (w *MetricsWrapper) PushLatencyObserve(v float64) {
	w.m.PushLatency.Observe(v)
}

func (w *MetricsWrapper) SessionAccuracyObserve(v float64) {
	w.m.SessionAccuracy.Observe(v)
}

func (w *MetricsWrapper) JournalErrorsInc() {
	w.m.JournalWriteErrors.Inc()
}

func (w *MetricsWrapper) ActiveSessionsSet(v float64) {
	w.m.ActiveSessions.Set(v)
}

func (w *MetricsWrapper) SessionsEvictedInc() {
	w.m.SessionsEvicted.Inc()
}

// Accuracy returns the process-wide hit ratio of scored predictions.
func (w *MetricsWrapper) Accuracy() float64 {
	return w.m.Accuracy()
}

func (w *MetricsWrapper) WSConnections() MetricsGauge {
	return &GaugeWrapper{w.m.WSConnections}
}

func (w *MetricsWrapper) Errors() MetricsCounter {
	return &CounterWrapper{w.m.ErrorsTotal}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}
