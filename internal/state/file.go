package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

type snapshot struct {
	Alerts []string `json:"alerts"`
}

// FileStore keeps the processed set in memory and rewrites a JSON snapshot
// on every mutation.
type FileStore struct {
	path string

	mu   sync.RWMutex
	seen map[string]struct{}
}

// OpenFile loads the snapshot at path. A missing file is an empty set; a
// file that exists but cannot be read or decoded is an error.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, seen: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", path, err)
	}
	for _, id := range snap.Alerts {
		s.seen[id] = struct{}{}
	}
	return s, nil
}

// IsNew reports whether id has not been marked processed.
func (s *FileStore) IsNew(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[id]
	return !ok, nil
}

// MarkProcessed adds id to the set and persists the snapshot.
func (s *FileStore) MarkProcessed(ctx context.Context, id string) error {
	return s.Extend(ctx, []string{id})
}

// Extend adds every id and persists the snapshot once.
func (s *FileStore) Extend(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.seen)
	for _, id := range ids {
		next[id] = struct{}{}
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.seen = next
	return nil
}

// Len returns the number of processed ids.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Close is a no-op; every mutation is already on disk.
func (s *FileStore) Close() error { return nil }

// persist writes the snapshot to a temp file in the same directory and
// renames it over the previous one.
func (s *FileStore) persist(seen map[string]struct{}) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	snap := snapshot{Alerts: slices.Sorted(maps.Keys(seen))}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state %s: %w", s.path, err)
	}
	return nil
}
