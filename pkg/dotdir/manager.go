// Package dotdir manages the .chora/ and ~/.chora directories.
//
// The directory holds the config file, the keyring, and the access/
// invitation tree. Resolution prefers a project-local .chora/ over the
// home directory so repositories can carry their own graph.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the chora directory.
	dirName = ".chora"

	// accessDirName holds circle invitation files under the chora directory.
	accessDirName = "access"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .chora/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.chora/ dir
//  3. Home ~/.chora/ dir
//  4. If none found, attempt to create ~/.chora/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating chora directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// AccessDir returns the absolute path to the invitation access directory,
// creating it if needed.
func (m *Manager) AccessDir(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(target, accessDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating access directory %s: %w", dir, err)
	}

	return dir, nil
}

// localDirExists checks whether a .chora/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
