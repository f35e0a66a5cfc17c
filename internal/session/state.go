// Package session owns the authenticated portal context: the persisted
// session artifact, validity detection, automated login and the rolling
// refresh that keeps the artifact alive between scheduled runs.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"casewatch/internal/browser"
)

// State is the serialized authenticated context. The file it is stored in
// must be treated like a password.
type State struct {
	CreatedAt       time.Time        `json:"created_at"`
	LastRefreshedAt time.Time        `json:"last_refreshed_at"`
	Cookies         []browser.Cookie `json:"cookies"`
}

// LoadState reads a persisted session artifact. A missing file is reported
// via os.IsNotExist on the wrapped error.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse session state: %w", err)
	}
	return &st, nil
}

// SaveState persists the session artifact atomically: write to a temp file in
// the same directory, then rename over the destination. Readers never observe
// a partial write.
func SaveState(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace session state: %w", err)
	}
	return nil
}
