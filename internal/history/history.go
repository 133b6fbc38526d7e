package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/arjenw/portward/internal/port"
)

// EventType describes what happened to a port binding.
type EventType string

const (
	EventOpen  EventType = "open"
	EventClose EventType = "close"
)

// Event represents a single binding appearing or disappearing.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Port      int       `json:"port"`
	PID       int       `json:"pid"`
	Process   string    `json:"process"`
	User      string    `json:"user"`
}

// Snapshot represents the bindings observed at a point in time.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Entries   []SnapshotEntry `json:"entries"`
}

// SnapshotEntry is a simplified record for snapshot storage.
type SnapshotEntry struct {
	Port    int    `json:"port"`
	PID     int    `json:"pid"`
	Process string `json:"process"`
	User    string `json:"user"`
}

// Store manages history persistence at ~/.config/portward/history.json.
type Store struct {
	path string
}

// Data is the on-disk format for the history file.
type Data struct {
	LastSnapshot *Snapshot `json:"last_snapshot,omitempty"`
	Events       []Event   `json:"events"`
}

// NewStore creates a Store with the default path.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return &Store{
		path: filepath.Join(home, ".config", "portward", "history.json"),
	}, nil
}

// NewStoreWithPath creates a Store at the given path (useful for testing).
func NewStoreWithPath(path string) *Store {
	return &Store{path: path}
}

// Load reads the history data from disk. Returns empty data if the file
// doesn't exist.
func (s *Store) Load() (*Data, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &Data{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}
	return &data, nil
}

// Save writes the history data to disk, creating parent directories as
// needed.
func (s *Store) Save(data *Data) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history data: %w", err)
	}

	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// SnapshotFromRecords converts a record list to a Snapshot. Placeholders
// are excluded; only live bindings are history-worthy.
func SnapshotFromRecords(records []port.PortRecord, ts time.Time) *Snapshot {
	snap := &Snapshot{Timestamp: ts}
	for _, r := range records {
		if !r.Active {
			continue
		}
		snap.Entries = append(snap.Entries, SnapshotEntry{
			Port:    r.Port,
			PID:     r.PID,
			Process: r.Process,
			User:    r.User,
		})
	}
	return snap
}

func entryKey(portNum, pid int) string {
	return fmt.Sprintf("%d/%d", portNum, pid)
}

// Diff compares a previous snapshot to the current records and returns
// events for bindings that opened or closed, keyed by (port, pid).
func Diff(prev *Snapshot, current []port.PortRecord, ts time.Time) []Event {
	prevMap := make(map[string]SnapshotEntry)
	if prev != nil {
		for _, e := range prev.Entries {
			prevMap[entryKey(e.Port, e.PID)] = e
		}
	}

	currMap := make(map[string]port.PortRecord)
	for _, r := range current {
		if !r.Active {
			continue
		}
		currMap[entryKey(r.Port, r.PID)] = r
	}

	var events []Event

	for key, r := range currMap {
		if _, existed := prevMap[key]; !existed {
			events = append(events, Event{
				Timestamp: ts,
				Type:      EventOpen,
				Port:      r.Port,
				PID:       r.PID,
				Process:   r.Process,
				User:      r.User,
			})
		}
	}

	for key, e := range prevMap {
		if _, exists := currMap[key]; !exists {
			events = append(events, Event{
				Timestamp: ts,
				Type:      EventClose,
				Port:      e.Port,
				PID:       e.PID,
				Process:   e.Process,
				User:      e.User,
			})
		}
	}

	// Deterministic output order.
	sort.Slice(events, func(i, j int) bool {
		if events[i].Port != events[j].Port {
			return events[i].Port < events[j].Port
		}
		return events[i].Type < events[j].Type
	})

	return events
}

// Record takes the current records, diffs against the stored snapshot,
// appends new events, updates the snapshot, and saves.
func (s *Store) Record(records []port.PortRecord, ts time.Time) ([]Event, error) {
	data, err := s.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	events := Diff(data.LastSnapshot, records, ts)
	data.Events = append(data.Events, events...)
	data.LastSnapshot = SnapshotFromRecords(records, ts)

	if err := s.Save(data); err != nil {
		return nil, fmt.Errorf("failed to save history: %w", err)
	}

	return events, nil
}
