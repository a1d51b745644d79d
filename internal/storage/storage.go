// Package storage provides persistent data storage for tickbayes.
// It uses BoltDB as the underlying storage engine to keep fetched intraday
// observations, so a series can be replayed offline, and a history of run
// summaries.
//
// Trained models are never stored; every run fits a fresh one.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"tickbayes/internal/market"

	"go.etcd.io/bbolt"
)

const (
	observationsBucket = "observations" // Bucket name for intraday observations
	runsBucket         = "runs"         // Bucket name for run summaries

	dbFile = "tickbayes.db"
)

// Store provides persistent storage using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(observationsBucket)); err != nil {
			return fmt.Errorf("create observations bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection. Calling it more than once is safe.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// SaveObservations stores a series in a single transaction. Keys have the
// form "symbol_timestamp"; saving the same timestamp again overwrites it.
func (s *Store) SaveObservations(obs []market.Observation) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))

		for _, o := range obs {
			data, err := json.Marshal(o)
			if err != nil {
				return fmt.Errorf("marshal observation: %w", err)
			}
			key := observationKey(o.Symbol, o.Timestamp)
			if err := b.Put(key, data); err != nil {
				return fmt.Errorf("put observation %s: %w", key, err)
			}
		}
		return nil
	})
}

// GetObservations returns every stored observation of symbol in key order,
// which is chronological for intraday timestamps.
func (s *Store) GetObservations(symbol string) ([]market.Observation, error) {
	var obs []market.Observation

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(observationsBucket)).Cursor()
		prefix := []byte(symbol + "_")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var o market.Observation
			if err := json.Unmarshal(v, &o); err != nil {
				continue // Skip malformed records
			}
			obs = append(obs, o)
		}
		return nil
	})

	return obs, err
}

// CountObservations returns the number of stored observations of symbol.
func (s *Store) CountObservations(symbol string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(observationsBucket)).Cursor()
		prefix := []byte(symbol + "_")
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func observationKey(symbol, timestamp string) []byte {
	return []byte(symbol + "_" + timestamp)
}

// getRecordsInRange retrieves records from a bucket whose keys fall between
// symbol_start and symbol_end, inclusive. Malformed records are skipped.
func getRecordsInRange[T any](s *Store, bucketName, symbol string, start, end time.Time) ([]T, error) {
	var records []T

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()

		prefix := []byte(symbol + "_")
		startKey := timeKey(symbol, start)
		endKey := timeKey(symbol, end)

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}

			var record T
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			records = append(records, record)
		}

		return nil
	})

	return records, err
}

// timeKey zero-pads the nanosecond timestamp so keys order by time.
func timeKey(symbol string, t time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%020d", symbol, t.UnixNano()))
}
