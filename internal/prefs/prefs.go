// Package prefs persists user preferences (favorited ports and watch
// specs) as JSON under ~/.config/portward. The core treats the store as an
// opaque get/set collaborator.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arjenw/portward/internal/inventory"
)

// Data is the on-disk preference format.
type Data struct {
	Favorites []int                 `json:"favorites"`
	Watches   []inventory.WatchSpec `json:"watches"`
}

// Store manages preference persistence.
type Store struct {
	path string
}

// NewStore creates a Store at the default path
// (~/.config/portward/prefs.json).
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return &Store{
		path: filepath.Join(home, ".config", "portward", "prefs.json"),
	}, nil
}

// NewStoreWithPath creates a Store at the given path (useful for testing).
func NewStoreWithPath(path string) *Store {
	return &Store{path: path}
}

// Load reads preferences from disk. Returns empty data if the file does
// not exist.
func (s *Store) Load() (*Data, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &Data{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prefs file: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse prefs file: %w", err)
	}
	return &data, nil
}

// Save writes preferences to disk, creating parent directories as needed.
func (s *Store) Save(data *Data) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create prefs directory: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal prefs: %w", err)
	}

	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write prefs file: %w", err)
	}
	return nil
}
