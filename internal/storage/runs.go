package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// RunRecord summarises one fit/evaluate run
type RunRecord struct {
	Symbol         string        `json:"symbol"`
	Timestamp      time.Time     `json:"timestamp"`
	Observations   int           `json:"observations"`
	Fallbacks      int           `json:"fallbacks"`
	Inversions     int           `json:"inversions"`
	Accuracy       float64       `json:"accuracy"`
	Baseline       float64       `json:"baseline"`
	MeanConfidence float64       `json:"mean_confidence"`
	Duration       time.Duration `json:"duration"`
}

// SaveRun stores a run summary keyed by symbol and run time
func (s *Store) SaveRun(record RunRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal run record: %w", err)
		}

		return b.Put(timeKey(record.Symbol, record.Timestamp), data)
	})
}

// GetRuns returns run summaries of symbol between start and end, inclusive,
// oldest first
func (s *Store) GetRuns(symbol string, start, end time.Time) ([]RunRecord, error) {
	return getRecordsInRange[RunRecord](s, runsBucket, symbol, start, end)
}
