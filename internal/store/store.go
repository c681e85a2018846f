// Package store persists the face index as a single JSON document with a
// single-generation backup and atomic replacement on save.
package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio"
	"github.com/kozaktomas/photo-indexer/internal/faceindex"
)

// CorruptError reports that the persisted index exists but cannot be
// parsed. Callers decide whether to abort or to reinitialize; Load never
// makes that choice silently.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("index file %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Store reads and writes the index document. It assumes a single writer;
// callers must serialize Save.
type Store struct {
	path string
}

// New creates a store for the index document at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the index document location.
func (s *Store) Path() string { return s.path }

// BackupPath returns the location of the single-generation backup.
func (s *Store) BackupPath() string { return s.path + ".backup" }

// Load reads the persisted index. A missing file yields an empty index,
// not an error. A file that fails to parse yields a CorruptError.
func (s *Store) Load() (faceindex.Index, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return faceindex.Index{}, nil
		}
		return nil, fmt.Errorf("reading index file %s: %w", s.path, err)
	}

	var idx faceindex.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, &CorruptError{Path: s.path, Err: err}
	}
	return idx, nil
}

// Save replaces the persisted index with idx. If a previous version
// exists, its bytes are copied verbatim to the backup location first,
// overwriting any prior backup. The document itself is written to a
// temporary file and renamed into place, so a crash mid-write can never
// leave an unparseable index behind.
func (s *Store) Save(idx faceindex.Index) error {
	prev, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if err := renameio.WriteFile(s.BackupPath(), prev, 0o644); err != nil {
			return fmt.Errorf("writing index backup %s: %w", s.BackupPath(), err)
		}
	case os.IsNotExist(err):
		// First save, nothing to back up.
	default:
		return fmt.Errorf("reading current index %s: %w", s.path, err)
	}

	if idx == nil {
		idx = faceindex.Index{}
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	data = append(data, '\n')

	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing index file %s: %w", s.path, err)
	}
	return nil
}
