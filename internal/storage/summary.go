package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// SessionSummary is written when a session closes or is evicted.
type SessionSummary struct {
	SessionID   string    `json:"session_id"`
	ContextSize int       `json:"context_size"`
	Inputs      uint64    `json:"inputs"`
	Predictions uint64    `json:"predictions"`
	Correct     uint64    `json:"correct"`
	Contexts    int       `json:"contexts"`
	CreatedAt   time.Time `json:"created_at"`
	ClosedAt    time.Time `json:"closed_at"`
	Reason      string    `json:"reason"`
}

// StoreSummary stores a closed session's summary
func (s *Store) StoreSummary(summary SessionSummary) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(summariesBucket))

		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal session summary: %w", err)
		}

		return b.Put([]byte(summary.SessionID), data)
	})
}

// GetSummary returns the summary stored for sessionID
func (s *Store) GetSummary(sessionID string) (SessionSummary, bool, error) {
	var summary SessionSummary
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(summariesBucket)).Get([]byte(sessionID))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &summary); err != nil {
			return fmt.Errorf("unmarshal session summary: %w", err)
		}
		found = true
		return nil
	})

	return summary, found, err
}

// Summaries returns all stored session summaries ordered by session id
func (s *Store) Summaries() ([]SessionSummary, error) {
	var out []SessionSummary

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(summariesBucket)).ForEach(func(_, v []byte) error {
			var summary SessionSummary
			if err := json.Unmarshal(v, &summary); err != nil {
				return nil
			}
			out = append(out, summary)
			return nil
		})
	})

	return out, err
}
