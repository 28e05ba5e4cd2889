package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const snapshotVersion = 1

// snapshotFile is the on-disk index format.
type snapshotFile struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Chunks  []Chunk   `json:"chunks"`
}

// ReadSnapshot loads an index snapshot. A missing file returns an empty
// chunk set, not an error, so a fresh install starts with no knowledge.
func ReadSnapshot(path string) ([]Chunk, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking snapshot: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot %s has version %d, want %d", path, snap.Version, snapshotVersion)
	}
	return snap.Chunks, nil
}

// WriteSnapshot persists the chunk set atomically (temp file + rename)
// under a file lock, so a crash mid-write never leaves a torn snapshot
// and concurrent ingest runs serialize.
func WriteSnapshot(path string, chunks []Chunk) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking snapshot: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.Marshal(snapshotFile{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Chunks:  chunks,
	})
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Restore loads the snapshot at path into the store. Returns the number
// of chunks loaded; a missing snapshot loads zero chunks.
func (s *Store) Restore(path string) (int, error) {
	chunks, err := ReadSnapshot(path)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	s.Replace(chunks)
	return len(chunks), nil
}

// Save writes the store's current chunk set to path.
func (s *Store) Save(path string) error {
	return WriteSnapshot(path, s.Chunks())
}
