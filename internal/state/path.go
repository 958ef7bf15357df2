package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const stateFileName = "state.json"

func DefaultPath() (string, error) {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, "monday-source", stateFileName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}

	return filepath.Join(home, ".local", "share", "monday-source", stateFileName), nil
}

// Open picks the store by extension: .db, .sqlite and .sqlite3 open a
// SQLite database, anything else a JSON file.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		return NewSQLiteStore(path)
	default:
		return NewFileStore(path), nil
	}
}
