// Package evidence persists local copies of alert snapshots and sensor windows
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Store writes evidence blobs under a local directory. Entries are
// timestamp-and-uuid named and never updated or deleted by this service.
type Store struct {
	dir string
}

// NewStore creates the evidence directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the evidence directory.
func (s *Store) Dir() string {
	return s.dir
}

// Put saves a blob and returns its locator (the filename within the store).
func (s *Store) Put(data []byte, ext string) (string, error) {
	ts := time.Now().Format("20060102_150405")
	locator := fmt.Sprintf("accident_%s_%s.%s", ts, uuid.New().String()[:8], ext)

	if err := os.WriteFile(filepath.Join(s.dir, locator), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write evidence %s: %w", locator, err)
	}
	return locator, nil
}

// Open reads a previously stored blob by locator.
func (s *Store) Open(locator string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, locator))
}
