// Package persist writes local store snapshots to disk so unsent edits
// survive a process restart. One JSON file per group; writes go through a
// temp file and rename so a crash never leaves a torn snapshot.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/splitledger/splitledger/pkg/logger"
	"github.com/splitledger/splitledger/pkg/store"
)

type FileStore struct {
	dir string
	log logger.Logger

	mu sync.Mutex
}

func NewFileStore(dir string, log logger.Logger) *FileStore {
	if log == nil {
		log = logger.Nop{}
	}
	return &FileStore{dir: dir, log: log}
}

func (f *FileStore) path(groupID int64) string {
	return filepath.Join(f.dir, fmt.Sprintf("group-%d.json", groupID))
}

// Save persists the snapshot for its group, replacing any previous one.
func (f *FileStore) Save(snap store.LocalSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("persist: create dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: encode group %d: %w", snap.GroupID, err)
	}
	tmp := f.path(snap.GroupID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("persist: write group %d: %w", snap.GroupID, err)
	}
	if err := os.Rename(tmp, f.path(snap.GroupID)); err != nil {
		return fmt.Errorf("persist: replace group %d: %w", snap.GroupID, err)
	}
	f.log.Debug("local snapshot saved", "group_id", snap.GroupID, "bytes", len(data))
	return nil
}

// Load reads the snapshot for a group. A missing file is not an error; ok
// reports whether a snapshot existed.
func (f *FileStore) Load(groupID int64) (snap store.LocalSnapshot, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(groupID))
	if errors.Is(err, fs.ErrNotExist) {
		return store.LocalSnapshot{}, false, nil
	}
	if err != nil {
		return store.LocalSnapshot{}, false, fmt.Errorf("persist: read group %d: %w", groupID, err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return store.LocalSnapshot{}, false, fmt.Errorf("persist: decode group %d: %w", groupID, err)
	}
	return snap, true, nil
}

// Drop removes the snapshot for a group, if any.
func (f *FileStore) Drop(groupID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(groupID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("persist: drop group %d: %w", groupID, err)
	}
	return nil
}
