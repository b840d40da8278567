// Package storage keeps a local history of finished runs in a bbolt file.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/wesleyorama2/runner/internal/performance/metrics"
)

const (
	bucketRuns  = "runs"
	bucketIndex = "run_ids"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Store is a run history database. Runs are keyed by start time so that
// cursors walk them chronologically.
type Store struct {
	db   *bbolt.DB
	path string
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketRuns, bucketIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Record is one stored run.
type Record struct {
	RunID         string           `json:"runId"`
	Name          string           `json:"name"`
	StartTime     time.Time        `json:"startTime"`
	Duration      time.Duration    `json:"duration"`
	VUs           int              `json:"vus"`
	Iterations    int64            `json:"iterations"`
	TotalRequests int64            `json:"totalRequests"`
	FailRate      float64          `json:"failRate"`
	P95           time.Duration    `json:"p95"`
	Passed        bool             `json:"passed"`
	Summary       *metrics.Summary `json:"summary"`
}

// NewRecord condenses a summary into a history record.
func NewRecord(s *metrics.Summary) Record {
	return Record{
		RunID:         s.RunID,
		Name:          s.Name,
		StartTime:     s.StartTime,
		Duration:      s.Duration,
		VUs:           s.VUs,
		Iterations:    s.Iterations,
		TotalRequests: s.TotalRequests,
		FailRate:      s.FailRate,
		P95:           s.Latency.P95,
		Passed:        s.Passed,
		Summary:       s,
	}
}

func runKey(start time.Time, runID string) []byte {
	key := make([]byte, 8, 8+len(runID))
	binary.BigEndian.PutUint64(key, uint64(start.UnixNano()))
	return append(key, runID...)
}

// Save stores the summary of a finished run.
func (s *Store) Save(summary *metrics.Summary) error {
	if summary.RunID == "" {
		return errors.New("summary has no run ID")
	}

	data, err := json.Marshal(NewRecord(summary))
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	key := runKey(summary.StartTime, summary.RunID)
	return s.db.Update(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(bucketIndex))
		runs := tx.Bucket([]byte(bucketRuns))

		// Replace any earlier copy of the same run.
		if old := index.Get([]byte(summary.RunID)); old != nil {
			if err := runs.Delete(old); err != nil {
				return err
			}
		}
		if err := runs.Put(key, data); err != nil {
			return err
		}
		return index.Put([]byte(summary.RunID), key)
	})
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(limit int) ([]Record, error) {
	var records []Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupt history entry: %w", err)
			}
			records = append(records, r)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns the run with the given ID.
func (s *Store) Get(runID string) (*Record, error) {
	var r Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(bucketIndex)).Get([]byte(runID))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		v := tx.Bucket([]byte(bucketRuns)).Get(key)
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes a run. Deleting an unknown run returns ErrNotFound.
func (s *Store) Delete(runID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(bucketIndex))
		key := index.Get([]byte(runID))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		if err := tx.Bucket([]byte(bucketRuns)).Delete(key); err != nil {
			return err
		}
		return index.Delete([]byte(runID))
	})
}
