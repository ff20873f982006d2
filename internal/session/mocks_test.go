package session

import (
	"errors"
	"sync"

	"pattern-bot/internal/storage"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	inputs      int
	predictions int
	correct     int
	fallbacks   int
	contexts    float64
	latencies   int
	accuracies  []float64
	journalErrs int
	active      float64
	evicted     int
}

func (m *MockMetrics) InputsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs++
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) CorrectInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.correct++
}

func (m *MockMetrics) FallbackInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

func (m *MockMetrics) ContextsLearnedAdd(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts += v
}

func (m *MockMetrics) PushLatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *MockMetrics) SessionAccuracyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracies = append(m.accuracies, v)
}

func (m *MockMetrics) JournalErrorsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journalErrs++
}

func (m *MockMetrics) ActiveSessionsSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = v
}

func (m *MockMetrics) SessionsEvictedInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evicted++
}

// MockRecorder collects journal writes in memory
type MockRecorder struct {
	mu           sync.Mutex
	observations []storage.Observation
	summaries    []storage.SessionSummary
	fail         bool
}

func (r *MockRecorder) Record(obs storage.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("journal unavailable")
	}
	r.observations = append(r.observations, obs)
	return nil
}

func (r *MockRecorder) StoreSummary(s storage.SessionSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("journal unavailable")
	}
	r.summaries = append(r.summaries, s)
	return nil
}
