// Package dotdir resolves the .folio/ directory that holds configuration and
// uploaded documents.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the folio directory.
	DirName = ".folio"

	uploadsDirName = "uploads"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to a .folio/ directory, creating it when
// missing. Precedence:
//  1. Provided override
//  2. Local ./.folio/ dir
//  3. Home ~/.folio/ dir
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
		dir = filepath.Join(cwd, DirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating folio directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// UploadDir returns the directory uploaded documents are written to. An
// explicit dir wins; otherwise uploads/ under the resolved .folio/ target.
func (m *Manager) UploadDir(overrideDir, dir string) (string, error) {
	if dir == "" {
		target, err := m.Target(overrideDir)
		if err != nil {
			return "", err
		}
		dir = filepath.Join(target, uploadsDirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, DirName))
	return err == nil && info.IsDir()
}
