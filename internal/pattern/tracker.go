// Package pattern implements an online n-gram predictor for binary streams.
//
// A Tracker records every observed bit and, for each fixed-length context of
// preceding bits, tallies how often a 0 or a 1 followed it. Predictions are a
// majority vote over the tally of the context currently trailing the stream,
// with a fair coin flip when the context is unseen or tied.
//
// A Tracker is not safe for concurrent use; callers must serialize access.
package pattern

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

const (
	// DefaultContextSize is the number of trailing bits used as context.
	DefaultContextSize = 5
	// MaxContextSize keeps every context key inside a uint64.
	MaxContextSize = 32
)

// ErrInvalidContextSize is returned by New for a context size outside [1, MaxContextSize].
var ErrInvalidContextSize = errors.New("pattern: invalid context size")

// Counter tallies the outcomes that followed one context.
type Counter struct {
	Zero uint64 `json:"zero"`
	One  uint64 `json:"one"`
}

// Total is the number of times the context was observed as a predecessor.
func (c Counter) Total() uint64 { return c.Zero + c.One }

// Prediction describes how PredictNext resolved its answer.
type Prediction struct {
	Next     bool    `json:"next"`
	Key      uint64  `json:"key"`
	Counter  Counter `json:"counter"`
	Seen     bool    `json:"seen"`
	Fallback bool    `json:"fallback"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRand sets the source used for the tie/unseen coin flip.
func WithRand(r *rand.Rand) Option {
	return func(t *Tracker) { t.rng = r }
}

// Tracker predicts the next bit of a stream from the statistics of everything
// pushed so far.
type Tracker struct {
	n       int
	history []bool
	table   map[uint64]Counter
	rng     *rand.Rand
}

// New creates an empty tracker that uses the last n bits as context.
func New(n int, opts ...Option) (*Tracker, error) {
	if n < 1 || n > MaxContextSize {
		return nil, fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidContextSize, n, MaxContextSize)
	}

	t := &Tracker{
		n:     n,
		table: make(map[uint64]Counter),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// NewDefault creates an empty tracker with DefaultContextSize.
func NewDefault(opts ...Option) *Tracker {
	t, _ := New(DefaultContextSize, opts...)
	return t
}

// ContextSize returns N.
func (t *Tracker) ContextSize() int { return t.n }

// Len returns the number of bits pushed so far.
func (t *Tracker) Len() int { return len(t.history) }

// Contexts returns the number of distinct contexts observed as predecessors.
func (t *Tracker) Contexts() int { return len(t.table) }

// Counter returns the tally recorded for key.
func (t *Tracker) Counter(key uint64) (Counter, bool) {
	c, ok := t.table[key]
	return c, ok
}

// Push records one observation. The context that preceded bit, if any, gets
// its tally incremented before bit is appended to the history.
func (t *Tracker) Push(bit bool) {
	if key, ok := t.trailingKey(); ok {
		c := t.table[key]
		if bit {
			c.One++
		} else {
			c.Zero++
		}
		t.table[key] = c
	}
	t.history = append(t.history, bit)
}

// PredictNext returns the most likely next bit. ok is false until at least
// ContextSize bits have been pushed.
func (t *Tracker) PredictNext() (next bool, ok bool) {
	p, ok := t.Predict()
	return p.Next, ok
}

// Predict is PredictNext with the details of how the answer was reached.
func (t *Tracker) Predict() (Prediction, bool) {
	key, ok := t.trailingKey()
	if !ok {
		return Prediction{}, false
	}

	c, seen := t.table[key]
	p := Prediction{Key: key, Counter: c, Seen: seen}
	switch {
	case seen && c.One > c.Zero:
		p.Next = true
	case seen && c.Zero > c.One:
		p.Next = false
	default:
		p.Next = t.coin()
		p.Fallback = true
	}
	return p, true
}

// Snapshot copies the context table.
func (t *Tracker) Snapshot() map[uint64]Counter {
	out := make(map[uint64]Counter, len(t.table))
	for k, v := range t.table {
		out[k] = v
	}
	return out
}

func (t *Tracker) trailingKey() (uint64, bool) {
	if len(t.history) < t.n {
		return 0, false
	}
	return ContextKey(t.history[len(t.history)-t.n:]), true
}

func (t *Tracker) coin() bool {
	if t.rng != nil {
		return t.rng.IntN(2) == 1
	}
	return rand.IntN(2) == 1
}

// ContextKey packs bits into an integer with bits[0] as the least significant
// bit. Callers pass at most MaxContextSize bits.
func ContextKey(bits []bool) uint64 {
	var key uint64
	for i := len(bits) - 1; i >= 0; i-- {
		key <<= 1
		if bits[i] {
			key |= 1
		}
	}
	return key
}

// ContextBits is the inverse of ContextKey for an n-bit context.
func ContextBits(key uint64, n int) []bool {
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = key&(1<<uint(i)) != 0
	}
	return bits
}
