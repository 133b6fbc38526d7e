package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/arjenw/portward/internal/port"
)

func active(portNum, pid int, process string) port.PortRecord {
	return port.PortRecord{
		Port:    portNum,
		PID:     pid,
		Process: process,
		User:    "arjen",
		Active:  true,
	}
}

func TestDiff_OpenAndClose(t *testing.T) {
	ts := time.Now()
	prev := SnapshotFromRecords([]port.PortRecord{
		active(80, 1, "nginx"),
		active(3000, 10, "node"),
	}, ts)

	current := []port.PortRecord{
		active(80, 1, "nginx"),
		active(8080, 20, "java"),
	}

	events := Diff(prev, current, ts)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	if events[0].Type != EventClose || events[0].Port != 3000 {
		t.Errorf("expected close for 3000, got %+v", events[0])
	}
	if events[1].Type != EventOpen || events[1].Port != 8080 {
		t.Errorf("expected open for 8080, got %+v", events[1])
	}
}

func TestDiff_PIDChangeIsCloseAndOpen(t *testing.T) {
	ts := time.Now()
	prev := SnapshotFromRecords([]port.PortRecord{active(3000, 10, "node")}, ts)

	events := Diff(prev, []port.PortRecord{active(3000, 11, "node")}, ts)
	if len(events) != 2 {
		t.Fatalf("a restarted process is a close plus an open, got %d events", len(events))
	}
}

func TestDiff_IgnoresPlaceholders(t *testing.T) {
	ts := time.Now()
	events := Diff(nil, []port.PortRecord{port.Placeholder(5432)}, ts)
	if len(events) != 0 {
		t.Errorf("placeholders must not produce events, got %v", events)
	}
}

func TestStore_Record(t *testing.T) {
	store := NewStoreWithPath(filepath.Join(t.TempDir(), "history.json"))
	ts := time.Now()

	events, err := store.Record([]port.PortRecord{active(80, 1, "nginx")}, ts)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventOpen {
		t.Fatalf("expected one open event, got %v", events)
	}

	// Same state again: no new events.
	events, err = store.Record([]port.PortRecord{active(80, 1, "nginx")}, ts.Add(time.Minute))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %v", events)
	}

	// Port gone: close event, and the log accumulates.
	events, err = store.Record(nil, ts.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventClose {
		t.Fatalf("expected one close event, got %v", events)
	}

	data, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(data.Events) != 2 {
		t.Errorf("expected 2 accumulated events, got %d", len(data.Events))
	}
}
