// Package session adapts the pattern tracker to the two-symbol stream API.
//
// Each Session owns exactly one tracker and serializes access to it with its
// own lock. Sessions score the stream the way a player sees it: the
// prediction outstanding when a symbol arrives is compared with that symbol.
package session

import (
	"fmt"
	"sync"
	"time"

	"pattern-bot/internal/pattern"
	"pattern-bot/internal/storage"
	"pattern-bot/internal/symbol"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the metrics a session reports
type MetricsInterface interface {
	InputsInc()
	PredictionsInc()
	CorrectInc()
	FallbackInc()
	ContextsLearnedAdd(float64)
	PushLatencyObserve(float64)
	SessionAccuracyObserve(float64)
	JournalErrorsInc()
	ActiveSessionsSet(float64)
	SessionsEvictedInc()
}

// Recorder receives every observation and the summary of closed sessions.
type Recorder interface {
	Record(storage.Observation) error
	StoreSummary(storage.SessionSummary) error
}

// Stats is a point-in-time view of a session's scoring.
type Stats struct {
	ID          string    `json:"id"`
	ContextSize int       `json:"context_size"`
	Inputs      uint64    `json:"inputs"`
	Predictions uint64    `json:"predictions"`
	Correct     uint64    `json:"correct"`
	Ratio       float64   `json:"ratio"`
	Contexts    int       `json:"contexts"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// Outcome is the result of a push.
type Outcome struct {
	Input     symbol.Symbol  `json:"input"`
	Predicted *symbol.Symbol `json:"predicted,omitempty"`
	Correct   bool           `json:"correct"`
	Fallback  bool           `json:"fallback"`
	Next      *symbol.Symbol `json:"next,omitempty"`
	Stats     Stats          `json:"stats"`
}

// ContextEntry is one row of the debug view of the context table.
type ContextEntry struct {
	Key     uint64          `json:"key"`
	Context []symbol.Symbol `json:"context"`
	Counter pattern.Counter `json:"counter"`
}

// Snapshot is the debug view of a session's tracker.
type Snapshot struct {
	Stats    Stats          `json:"stats"`
	Contexts []ContextEntry `json:"contexts"`
}

// Session is one independent stream with its own tracker.
type Session struct {
	id       string
	mu       sync.Mutex
	tracker  *pattern.Tracker
	pending  pattern.Prediction
	ready    bool
	closed   bool
	inputs   uint64
	preds    uint64
	correct  uint64
	created  time.Time
	lastSeen time.Time

	now      func() time.Time
	recorder Recorder
	metrics  MetricsInterface
}

func newSession(id string, tracker *pattern.Tracker, now func() time.Time, recorder Recorder, metrics MetricsInterface) *Session {
	t := now()
	return &Session{
		id:       id,
		tracker:  tracker,
		created:  t,
		lastSeen: t,
		now:      now,
		recorder: recorder,
		metrics:  metrics,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// PushBlack records a Black input.
func (s *Session) PushBlack() (Outcome, error) { return s.Push(symbol.Black) }

// PushWhite records a White input.
func (s *Session) PushWhite() (Outcome, error) { return s.Push(symbol.White) }

// Push scores the outstanding prediction against in, feeds in to the tracker
// and computes the next prediction. It fails with ErrSessionNotFound once the
// manager has closed the session.
func (s *Session) Push(in symbol.Symbol) (Outcome, error) {
	start := time.Now()
	in = symbol.FromBool(in.Bool())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %s", ErrSessionNotFound, s.id)
	}
	out := Outcome{Input: in}
	if s.ready {
		predicted := symbol.FromBool(s.pending.Next)
		out.Predicted = &predicted
		out.Correct = predicted == in
		out.Fallback = s.pending.Fallback
		s.preds++
		if out.Correct {
			s.correct++
		}
	}

	before := s.tracker.Contexts()
	s.tracker.Push(in.Bool())
	s.inputs++
	s.lastSeen = s.now()
	s.pending, s.ready = s.tracker.Predict()
	if s.ready {
		next := symbol.FromBool(s.pending.Next)
		out.Next = &next
	}
	learned := s.tracker.Contexts() - before
	out.Stats = s.statsLocked()
	obs := storage.Observation{
		SessionID: s.id,
		Seq:       s.inputs,
		Input:     in,
		Predicted: out.Predicted,
		Correct:   out.Correct,
		Timestamp: s.lastSeen,
	}
	s.mu.Unlock()

	if s.recorder != nil {
		if err := s.recorder.Record(obs); err != nil {
			log.Error().Err(err).Str("session", s.id).Uint64("seq", obs.Seq).Msg("failed to journal observation")
			if s.metrics != nil {
				s.metrics.JournalErrorsInc()
			}
		}
	}

	if s.metrics != nil {
		s.metrics.InputsInc()
		if out.Predicted != nil {
			s.metrics.PredictionsInc()
			if out.Correct {
				s.metrics.CorrectInc()
			}
			if out.Fallback {
				s.metrics.FallbackInc()
			}
		}
		if learned > 0 {
			s.metrics.ContextsLearnedAdd(float64(learned))
		}
		s.metrics.PushLatencyObserve(time.Since(start).Seconds())
	}

	log.Debug().
		Str("session", s.id).
		Stringer("input", in).
		Bool("correct", out.Correct).
		Uint64("inputs", out.Stats.Inputs).
		Msg("input pushed")

	return out, nil
}

// PredictNext returns the outstanding prediction. ok is false until the
// stream is at least as long as the tracker's context.
func (s *Session) PredictNext() (next symbol.Symbol, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return symbol.Black, false
	}
	return symbol.FromBool(s.pending.Next), true
}

// Stats returns the session's current scoring.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// Snapshot returns the stats plus a copy of the context table ordered by key.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.tracker.ContextSize()
	table := s.tracker.Snapshot()
	entries := make([]ContextEntry, 0, len(table))
	for key, c := range table {
		bits := pattern.ContextBits(key, n)
		ctx := make([]symbol.Symbol, n)
		for i, b := range bits {
			ctx[i] = symbol.FromBool(b)
		}
		entries = append(entries, ContextEntry{Key: key, Context: ctx, Counter: c})
	}
	sortEntries(entries)

	return Snapshot{Stats: s.statsLocked(), Contexts: entries}
}

// Touch marks the session as active without pushing.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.now()
}

// Closed reports whether the manager has removed the session.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// summary marks the session closed and returns its final tallies.
func (s *Session) summary(reason string, closedAt time.Time) storage.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return storage.SessionSummary{
		SessionID:   s.id,
		ContextSize: s.tracker.ContextSize(),
		Inputs:      s.inputs,
		Predictions: s.preds,
		Correct:     s.correct,
		Contexts:    s.tracker.Contexts(),
		CreatedAt:   s.created,
		ClosedAt:    closedAt,
		Reason:      reason,
	}
}

func (s *Session) statsLocked() Stats {
	st := Stats{
		ID:          s.id,
		ContextSize: s.tracker.ContextSize(),
		Inputs:      s.inputs,
		Predictions: s.preds,
		Correct:     s.correct,
		Contexts:    s.tracker.Contexts(),
		CreatedAt:   s.created,
		LastSeen:    s.lastSeen,
	}
	if s.preds > 0 {
		st.Ratio = float64(s.correct) / float64(s.preds)
	}
	return st
}
