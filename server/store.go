package server

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/pipeline"
	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// allowedExt lists the accepted upload formats.
var allowedExt = map[string]bool{".csv": true, ".xlsx": true, ".xlsm": true}

// Upload is one stored file and, once processed, its pipeline run.
type Upload struct {
	ID         string    `json:"file_id"`
	Filename   string    `json:"filename"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	UploadedAt time.Time `json:"uploaded_at"`

	path  string
	table *dataset.Table
}

// Store keeps uploads in memory and their raw bytes under dir.
type Store struct {
	dir string

	mu      sync.RWMutex
	uploads map[string]*Upload
	runs    map[string]*pipeline.Run
}

// NewStore creates a store writing files under dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:     dir,
		uploads: make(map[string]*Upload),
		runs:    make(map[string]*pipeline.Run),
	}
}

// Add parses data as a CSV or XLSX table and stores it under a new id.
func (s *Store) Add(filename string, data []byte) (*Upload, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return nil, errors.NewValidationError("file", "must be a .csv or .xlsx file", filename)
	}

	tbl, err := dataset.Read(bytes.NewReader(data), filename)
	if err != nil {
		return nil, err
	}

	up := &Upload{
		ID:         uuid.NewString(),
		Filename:   filepath.Base(filename),
		Rows:       tbl.NumRows(),
		Columns:    tbl.Columns(),
		UploadedAt: time.Now(),
		table:      tbl,
	}
	up.path = filepath.Join(s.dir, up.ID+ext)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create upload directory %s", s.dir)
	}
	if err := os.WriteFile(up.path, data, 0o600); err != nil {
		return nil, errors.Wrapf(err, "failed to store upload %s", up.ID)
	}

	s.mu.Lock()
	s.uploads[up.ID] = up
	s.mu.Unlock()
	return up, nil
}

// Get returns the upload with id.
func (s *Store) Get(id string) (*Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	up, ok := s.uploads[id]
	if !ok {
		return nil, errors.Wrapf(ErrUploadNotFound, "file_id %s", id)
	}
	return up, nil
}

// SetRun records the latest pipeline run of an upload.
func (s *Store) SetRun(id string, run *pipeline.Run) {
	s.mu.Lock()
	s.runs[id] = run
	s.mu.Unlock()
}

// Run returns the latest run of an upload.
func (s *Store) Run(id string) (*pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.uploads[id]; !ok {
		return nil, errors.Wrapf(ErrUploadNotFound, "file_id %s", id)
	}
	run, ok := s.runs[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotProcessed, "file_id %s", id)
	}
	return run, nil
}
