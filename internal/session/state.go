package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	stateDir  = ".minairo"
	stateFile = "current_conversation"
)

// statePath returns the path to the current-conversation state file,
// creating ~/.minairo if needed.
func statePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(homeDir, stateDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}

	return filepath.Join(dir, stateFile), nil
}

// LoadCurrentConversationID reads the conversation id the CLI last used.
// Returns "" when no current conversation is recorded; a missing file is
// not an error.
func LoadCurrentConversationID() (string, error) {
	path, err := statePath()
	if err != nil {
		return "", err
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return "", fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading state file: %w", err)
	}

	id := strings.TrimSpace(string(data))
	if len(id) > MaxIDLength {
		return "", fmt.Errorf("%w: state file content exceeds %d characters", ErrInvalidID, MaxIDLength)
	}
	return id, nil
}

// SaveCurrentConversationID records the CLI's active conversation.
// The write is atomic (temp file + rename) and guarded by a file lock so
// concurrent CLI invocations never observe a torn file.
func SaveCurrentConversationID(id string) error {
	if id == "" || len(id) > MaxIDLength {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	path, err := statePath()
	if err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(path), stateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(id + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// ClearCurrentConversationID removes the state file. Idempotent; a
// missing file is not an error.
func ClearCurrentConversationID() error {
	path, err := statePath()
	if err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}
