// Package storage archives finished run reports in a bbolt database so past
// runs can be browsed and re-rendered.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"lampbench/internal/report"
)

const (
	BucketRuns = "runs"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

type Store struct {
	db       *bbolt.DB
	filePath string
}

// Open opens (creating if needed) the archive at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening archive %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing archive")
	}

	return &Store{
		db:       db,
		filePath: path,
	}, nil
}

func (s *Store) Path() string { return s.filePath }

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores r under its run ID, replacing an earlier report with the same ID.
func (s *Store) Save(r *report.RunReport) error {
	if r.RunID == "" {
		return errors.New("run report has no run ID")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrapf(err, "encoding run %s", r.RunID)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketRuns)).Put([]byte(r.RunID), data)
	})
}

// List returns the archived reports, newest first. Run IDs are timestamps,
// so key order is chronological. Entries that fail to decode are skipped.
func (s *Store) List() ([]report.RunReport, error) {
	var items []report.RunReport

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var item report.RunReport
			if err := json.Unmarshal(v, &item); err == nil {
				items = append(items, item)
			}
		}
		return nil
	})

	return items, err
}

func (s *Store) Get(runID string) (*report.RunReport, error) {
	var item report.RunReport
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(BucketRuns)).Get([]byte(runID))
		if v == nil {
			return errors.Wrap(ErrNotFound, runID)
		}
		return json.Unmarshal(v, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
