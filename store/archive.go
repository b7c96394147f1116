package store

import (
	"fmt"
	"sync"
)

// Archive rolls decision rows into parquet batches of at most flushRows rows.
type Archive struct {
	dir       string
	flushRows int

	mu      sync.Mutex
	current *BatchWriter
	written []string
}

func NewArchive(dir string, flushRows int) (*Archive, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive dir is required")
	}
	if flushRows <= 0 {
		flushRows = 5000
	}
	return &Archive{dir: dir, flushRows: flushRows}, nil
}

// Add appends one row, finalizing the batch when it is full.
func (a *Archive) Add(row DecisionRow) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		w, err := NewBatchWriter(a.dir)
		if err != nil {
			return err
		}
		a.current = w
	}
	if err := a.current.WriteRows([]DecisionRow{row}); err != nil {
		return err
	}
	if a.current.BufferedRows() >= a.flushRows {
		_, err := a.flushLocked()
		return err
	}
	return nil
}

// Flush finalizes the open batch and returns its path, or "" if it was empty.
func (a *Archive) Flush() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

func (a *Archive) flushLocked() (string, error) {
	if a.current == nil {
		return "", nil
	}
	path, _, err := a.current.Finalize()
	a.current = nil
	if err != nil {
		return "", err
	}
	if path != "" {
		a.written = append(a.written, path)
	}
	return path, nil
}

// Files lists the batches finalized so far.
func (a *Archive) Files() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.written...)
}

func (a *Archive) Close() error {
	_, err := a.Flush()
	return err
}
