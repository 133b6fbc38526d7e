package cli

import (
	"testing"

	"github.com/arjenw/portward/internal/port"
)

func rec(portNum, pid int) port.PortRecord {
	return port.PortRecord{Port: portNum, PID: pid, Process: "proc", Active: true}
}

func TestFindNewListeners(t *testing.T) {
	baseline := portKeySet([]port.PortRecord{
		rec(80, 100),
		rec(443, 100),
		port.Placeholder(9000), // tracked but not listening
	})
	if _, tracked := baseline[9000]; tracked {
		t.Fatal("placeholders must not enter the baseline")
	}

	current := []port.PortRecord{
		rec(80, 100),       // known
		rec(443, 200),      // same port, new PID: not a new listener
		rec(3000, 300),     // new
		port.Placeholder(9000),
	}

	fresh := findNewListeners(current, baseline)
	if len(fresh) != 1 || fresh[0].Port != 3000 {
		t.Fatalf("expected only port 3000 to alert, got %v", fresh)
	}
}

func TestFindNewListeners_NoChanges(t *testing.T) {
	baseline := portKeySet([]port.PortRecord{rec(80, 100)})
	if fresh := findNewListeners([]port.PortRecord{rec(80, 100)}, baseline); len(fresh) != 0 {
		t.Errorf("unchanged listeners must not alert, got %v", fresh)
	}
	if fresh := findNewListeners(nil, baseline); len(fresh) != 0 {
		t.Errorf("disappearing listeners must not alert, got %v", fresh)
	}
}

func TestAlertExitError(t *testing.T) {
	err := &alertExitError{count: 2}
	if err.Error() != "alert: 2 new port listener(s) detected" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestParsePortArg(t *testing.T) {
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"3000", 3000, false},
		{"0", 0, false},
		{"65535", 65535, false},
		{"65536", 0, true},
		{"-1", 0, true},
		{"http", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parsePortArg(tt.arg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePortArg(%q): expected error, got %d", tt.arg, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePortArg(%q): unexpected error: %v", tt.arg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePortArg(%q): got %d, want %d", tt.arg, got, tt.want)
		}
	}
}
