package start

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/papercomputeco/chora/pkg/dotdir"
)

const (
	stateFileName = "pulse.json"
	stateVersion  = 1
)

// State records a running pulse watcher so status can report it and a
// second watcher can refuse to start.
type State struct {
	Version         int       `json:"version"`
	PID             int       `json:"pid"`
	IntervalSeconds uint      `json:"interval_seconds"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StatePath resolves the pulse state file under the .chora/ directory.
func StatePath(configDir string) (string, error) {
	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stateFileName), nil
}

// LoadState reads the pulse state. A missing file returns nil, nil.
func LoadState(configDir string) (*State, error) {
	path, err := StatePath(configDir)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading pulse state: %w", err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("parsing pulse state: %w", err)
	}
	if st.Version != stateVersion {
		return nil, fmt.Errorf("unsupported pulse state version: %d", st.Version)
	}
	return &st, nil
}

// SaveState writes the pulse state, stamping Version and UpdatedAt.
func SaveState(configDir string, st *State) error {
	path, err := StatePath(configDir)
	if err != nil {
		return err
	}

	st.Version = stateVersion
	st.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding pulse state: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing pulse state: %w", err)
	}
	return nil
}

// ClearState removes the pulse state file. Missing files are not an error.
func ClearState(configDir string) error {
	path, err := StatePath(configDir)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing pulse state: %w", err)
	}
	return nil
}
