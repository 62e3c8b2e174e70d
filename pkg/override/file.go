package override

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists override flags as a single JSON document on disk,
// mirroring the local key-value storage QA builds use. Reads and writes go
// through the whole file; the flag set is tiny by definition.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed override store at path. The file is
// created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string]bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]bool), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read override file: %w", err)
	}

	flags := make(map[string]bool)
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, fmt.Errorf("failed to parse override file: %w", err)
	}

	return flags, nil
}

// Enabled reports the persisted flag, defaulting to false for unknown users
// and a missing file.
func (s *FileStore) Enabled(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.load()
	if err != nil {
		return false, err
	}

	return flags[userID], nil
}

// SetEnabled persists the flag, rewriting the file atomically via a rename.
func (s *FileStore) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.load()
	if err != nil {
		return err
	}

	if enabled {
		flags[userID] = true
	} else {
		delete(flags, userID)
	}

	data, err := json.MarshalIndent(flags, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode override flags: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create override directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write override file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace override file: %w", err)
	}

	return nil
}
