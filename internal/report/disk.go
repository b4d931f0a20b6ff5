package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// ErrNotFound is returned by Load for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// validID keeps run IDs from escaping the store directory.
var validID = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// DiskStore writes records as JSON files into a directory that is created
// on the first Save.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore creates a store rooted at dir. An empty dir selects a fresh
// temp directory, which does not outlive the process's view of it.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Dir returns the store directory, or "" before a temp directory is
// created.
func (s *DiskStore) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Save writes a record as <id>.json.
func (s *DiskStore) Save(rec *Record) error {
	if !validID.MatchString(rec.ID) {
		return fmt.Errorf("invalid run id %q", rec.ID)
	}
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling run %s: %w", rec.ID, err)
	}
	// Write then rename so a concurrent Load never sees a partial file.
	tmp, err := os.CreateTemp(dir, rec.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing run %s: %w", rec.ID, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing run %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing run %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, rec.ID+".json")); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing run %s: %w", rec.ID, err)
	}
	return nil
}

// Load reads a record from disk.
func (s *DiskStore) Load(runID string) (*Record, error) {
	if !validID.MatchString(runID) {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, runID+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("reading run %s: %w", runID, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshalling run %s: %w", runID, err)
	}
	return &rec, nil
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		dir, err := os.MkdirTemp("", "procexec-runs-*")
		if err != nil {
			return "", fmt.Errorf("creating run directory: %w", err)
		}
		s.dir = dir
		return dir, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	return s.dir, nil
}
