// Package storage provides the observation journal for the pattern service.
// It uses BoltDB to keep an append-only record of every symbol pushed into a
// session, together with the prediction that was outstanding at the time, so
// streams can be replayed offline by the backtest tooling.
//
// Learned tracker state is never written here; a restarted service starts
// every session from an empty tracker.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"pattern-bot/internal/symbol"

	"go.etcd.io/bbolt"
)

const (
	observationsBucket = "observations" // Bucket name for pushed symbols
	summariesBucket    = "summaries"    // Bucket name for closed session summaries
)

// Observation is one pushed symbol and how it was scored.
type Observation struct {
	SessionID string         `json:"session_id"`
	Seq       uint64         `json:"seq"`
	Input     symbol.Symbol  `json:"input"`
	Predicted *symbol.Symbol `json:"predicted,omitempty"`
	Correct   bool           `json:"correct"`
	Timestamp time.Time      `json:"timestamp"`
}

// Store provides persistent storage for observations using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the journal database at path.
func New(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(observationsBucket)); err != nil {
			return fmt.Errorf("create observations bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(summariesBucket)); err != nil {
			return fmt.Errorf("create summaries bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Open opens the journal file named file inside dataPath.
func Open(dataPath, file string) (*Store, error) {
	return New(filepath.Join(dataPath, file))
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record appends an observation. Keys are "sessionID_seq" with a zero padded
// sequence so a prefix scan returns a session's stream in push order.
func (s *Store) Record(obs Observation) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))

		data, err := json.Marshal(obs)
		if err != nil {
			return fmt.Errorf("marshal observation: %w", err)
		}

		return b.Put(observationKey(obs.SessionID, obs.Seq), data)
	})
}

// GetObservations returns every observation recorded for sessionID in push order.
func (s *Store) GetObservations(sessionID string) ([]Observation, error) {
	var out []Observation

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(observationsBucket)).Cursor()
		prefix := []byte(sessionID + "_")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var obs Observation
			if err := json.Unmarshal(v, &obs); err != nil {
				continue // Skip malformed records
			}
			out = append(out, obs)
		}
		return nil
	})

	return out, err
}

// Sessions lists the distinct session ids present in the journal.
func (s *Store) Sessions() ([]string, error) {
	var ids []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(observationsBucket)).Cursor()
		var last string
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			i := bytes.LastIndexByte(k, '_')
			if i < 0 {
				continue
			}
			if id := string(k[:i]); id != last {
				ids = append(ids, id)
				last = id
			}
		}
		return nil
	})

	return ids, err
}

func observationKey(sessionID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", sessionID, seq))
}
