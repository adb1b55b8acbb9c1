package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"valutatradehub/internal/rates"
)

// SnapshotStore persists the cache state between restarts.
type SnapshotStore interface {
	// Load returns the persisted snapshot, or (nil, nil) when none exists yet.
	Load() (*rates.Snapshot, error)
	// Save durably replaces the persisted snapshot.
	Save(snap *rates.Snapshot) error
}

var _ SnapshotStore = (*FileStore)(nil)

// FileStore keeps the snapshot as a JSON file on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot file. A missing file is not an error.
func (s *FileStore) Load() (*rates.Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	var snap rates.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	if snap.Table == nil {
		snap.Table = rates.Table{}
	}
	return &snap, nil
}

// Save writes the snapshot atomically: temp file in the same directory, then rename.
func (s *FileStore) Save(snap *rates.Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}
