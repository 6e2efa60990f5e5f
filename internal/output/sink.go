// Package output accumulates harvested records and writes them as one CSV file.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"listing_harvester/internal/shared/logger"
)

// ErrNoData is returned by Materialize when nothing was appended. It is a
// legitimate empty run, not an I/O failure.
var ErrNoData = errors.New("no data collected")

// OutputError is an I/O failure while writing a non-empty result set.
type OutputError struct {
	Path string
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("writing output '%s': %v", e.Path, e.Err)
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

// Record is one output row.
type Record interface {
	Columns() []string
	Row() []string
}

// Sink is safe for concurrent Append.
type Sink struct {
	mu      sync.Mutex
	records []Record
}

func NewSink() *Sink {
	return &Sink{}
}

// Append adds records in the given order.
func (s *Sink) Append(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// Len returns the number of accumulated records.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Materialize writes a header row (taken from the first record) and one row
// per record in accumulation order. The file is written to a temporary name
// and renamed into place, so a failure never leaves a partial artifact.
// It returns the absolute path written.
func (s *Sink) Materialize(path string) (string, error) {
	s.mu.Lock()
	records := make([]Record, len(s.records))
	copy(records, s.records)
	s.mu.Unlock()

	if len(records) == 0 {
		return "", ErrNoData
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &OutputError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), filepath.Base(abs)+".tmp-*")
	if err != nil {
		return "", &OutputError{Path: abs, Err: err}
	}
	tmpName := tmp.Name()
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmpName)
		return "", &OutputError{Path: abs, Err: err}
	}

	columns := records[0].Columns()
	w := csv.NewWriter(tmp)
	if err := w.Write(columns); err != nil {
		return fail(err)
	}
	for i, r := range records {
		row := r.Row()
		if len(row) != len(columns) {
			return fail(fmt.Errorf("record %d has %d fields, header has %d", i, len(row), len(columns)))
		}
		if err := w.Write(row); err != nil {
			return fail(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", &OutputError{Path: abs, Err: err}
	}
	if err := os.Rename(tmpName, abs); err != nil {
		os.Remove(tmpName)
		return "", &OutputError{Path: abs, Err: err}
	}

	l := logger.WithComponent("Output")
	l.Info().Str("path", abs).Int("rows", len(records)).Msg("Output written.")
	return abs, nil
}
