package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pattern-bot/internal/pattern"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("session limit reached")
)

// Close reasons stored in session summaries
const (
	ReasonDeleted  = "deleted"
	ReasonEvicted  = "evicted"
	ReasonShutdown = "shutdown"
)

// Config controls how sessions are created and expired.
type Config struct {
	ContextSize int
	IdleTTL     time.Duration
	MaxSessions int
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder journals observations and summaries to r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithMetrics reports session metrics to mi.
func WithMetrics(mi MetricsInterface) Option {
	return func(m *Manager) { m.metrics = mi }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTrackerOptions passes options to every tracker the manager creates.
// Sessions run concurrently, so a *rand.Rand must not be shared between them.
func WithTrackerOptions(opts ...pattern.Option) Option {
	return func(m *Manager) { m.trackerOpts = opts }
}

// Manager owns the live sessions of one process.
type Manager struct {
	cfg         Config
	mu          sync.RWMutex
	sessions    map[string]*Session
	recorder    Recorder
	metrics     MetricsInterface
	now         func() time.Time
	trackerOpts []pattern.Option
}

// NewManager validates cfg and returns an empty manager.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if _, err := pattern.New(cfg.ContextSize); err != nil {
		return nil, err
	}
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("max sessions must be positive, got %d", cfg.MaxSessions)
	}

	m := &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ContextSize returns the context length used for new sessions.
func (m *Manager) ContextSize() int { return m.cfg.ContextSize }

// Create starts a new session with an empty tracker.
func (m *Manager) Create() (*Session, error) {
	tracker, err := pattern.New(m.cfg.ContextSize, m.trackerOpts...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrTooManySessions, m.cfg.MaxSessions)
	}
	s := newSession(uuid.NewString(), tracker, m.now, m.recorder, m.metrics)
	m.sessions[s.id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.reportActive(count)
	log.Info().Str("session", s.id).Int("context_size", m.cfg.ContextSize).Msg("session created")
	return s, nil
}

// Get returns the live session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete closes the session with the given id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.reportActive(count)
	m.closeSession(s, ReasonDeleted)
	return nil
}

// List returns the stats of every live session, oldest first.
func (m *Manager) List() []Stats {
	m.mu.RLock()
	out := make([]Stats, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Stats())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the configured TTL and returns
// how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince(now) > m.cfg.IdleTTL {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	m.reportActive(count)
	for _, s := range expired {
		if m.metrics != nil {
			m.metrics.SessionsEvictedInc()
		}
		m.closeSession(s, ReasonEvicted)
	}
	log.Info().Int("evicted", len(expired)).Int("remaining", count).Msg("idle sessions evicted")
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is canceled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close ends every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.reportActive(0)
	for _, s := range all {
		m.closeSession(s, ReasonShutdown)
	}
}

func (m *Manager) closeSession(s *Session, reason string) {
	summary := s.summary(reason, m.now())

	if m.metrics != nil {
		m.metrics.ContextsLearnedAdd(-float64(summary.Contexts))
		if summary.Predictions > 0 {
			m.metrics.SessionAccuracyObserve(float64(summary.Correct) / float64(summary.Predictions))
		}
	}

	if m.recorder != nil {
		if err := m.recorder.StoreSummary(summary); err != nil {
			log.Error().Err(err).Str("session", s.id).Msg("failed to store session summary")
			if m.metrics != nil {
				m.metrics.JournalErrorsInc()
			}
		}
	}

	log.Info().
		Str("session", s.id).
		Str("reason", reason).
		Uint64("inputs", summary.Inputs).
		Uint64("predictions", summary.Predictions).
		Uint64("correct", summary.Correct).
		Msg("session closed")
}

func (m *Manager) reportActive(count int) {
	if m.metrics != nil {
		m.metrics.ActiveSessionsSet(float64(count))
	}
}

func sortEntries(entries []ContextEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}
