// Package backtest replays recorded symbol streams through a fresh tracker
// and scores its predictions.
package backtest

import (
	"fmt"
	"time"

	"pattern-bot/internal/pattern"
	"pattern-bot/internal/symbol"

	"github.com/rs/zerolog/log"
)

// Engine represents the backtesting engine
type Engine struct {
	contextSize int
	opts        []pattern.Option
}

// Results holds backtesting results
type Results struct {
	Source          string        `json:"source"`
	ContextSize     int           `json:"context_size"`
	Inputs          int           `json:"inputs"`
	Predictions     int           `json:"predictions"`
	Correct         int           `json:"correct"`
	Accuracy        float64       `json:"accuracy"`
	Fallbacks       int           `json:"fallbacks"`
	FallbackCorrect int           `json:"fallback_correct"`
	Contexts        int           `json:"contexts"`
	LongestRun      int           `json:"longest_correct_run"`
	Duration        time.Duration `json:"duration_ns"`
}

// NewEngine creates an engine that replays through trackers of context size n
func NewEngine(n int, opts ...pattern.Option) (*Engine, error) {
	if _, err := pattern.New(n); err != nil {
		return nil, err
	}
	return &Engine{contextSize: n, opts: opts}, nil
}

// Run replays every symbol in data. Before each push the tracker's current
// prediction, if any, is compared with the symbol about to be pushed.
func (e *Engine) Run(data *DataLoader) (*Results, error) {
	if data.Len() == 0 {
		return nil, ErrNoData
	}
	tracker, err := pattern.New(e.contextSize, e.opts...)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", data.Source).
		Int("symbols", data.Len()).
		Int("context_size", e.contextSize).
		Msg("Starting backtest")

	res := &Results{Source: data.Source, ContextSize: e.contextSize}
	start := time.Now()
	run := 0

	data.Reset()
	for data.HasNext() {
		in := data.Next()

		if p, ok := tracker.Predict(); ok {
			res.Predictions++
			hit := symbol.FromBool(p.Next) == in
			if p.Fallback {
				res.Fallbacks++
			}
			if hit {
				res.Correct++
				run++
				if p.Fallback {
					res.FallbackCorrect++
				}
			} else {
				run = 0
			}
			res.LongestRun = max(res.LongestRun, run)
		}

		tracker.Push(in.Bool())
		res.Inputs++
	}

	res.Contexts = tracker.Contexts()
	res.Duration = time.Since(start)
	if res.Predictions > 0 {
		res.Accuracy = float64(res.Correct) / float64(res.Predictions)
	}

	log.Info().
		Int("context_size", e.contextSize).
		Int("predictions", res.Predictions).
		Float64("accuracy", res.Accuracy).
		Int("contexts", res.Contexts).
		Msg("Backtest complete")

	return res, nil
}

// Compare runs the same stream once per context size.
func Compare(data *DataLoader, sizes []int, opts ...pattern.Option) ([]*Results, error) {
	out := make([]*Results, 0, len(sizes))
	for _, n := range sizes {
		e, err := NewEngine(n, opts...)
		if err != nil {
			return nil, fmt.Errorf("context size %d: %w", n, err)
		}
		res, err := e.Run(data)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
