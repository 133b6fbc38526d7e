package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/arjenw/portward/internal/scheduler"
)

func TestNew_RefreshInterval(t *testing.T) {
	m := New(nil, "test", 2*time.Second)
	if m.interval != 2*time.Second {
		t.Errorf("configured interval not applied, got %v", m.interval)
	}

	m = New(nil, "test", 0)
	if m.interval != scheduler.DefaultInterval {
		t.Errorf("zero interval must fall back to default, got %v", m.interval)
	}
}

func TestUpdate_TransitionFlash(t *testing.T) {
	m := New(nil, "test", time.Second)
	m.scanning = false

	updated, _ := m.Update(TransitionMsg{Port: 3000, Active: true})
	m = updated.(Model)

	if m.flash != "port 3000 started listening" {
		t.Fatalf("unexpected flash: %q", m.flash)
	}
	if !m.flashUntil.After(time.Now()) {
		t.Error("flash expiry must be in the future")
	}
	if !strings.Contains(m.View(), "port 3000 started listening") {
		t.Error("table header should show the transition flash")
	}

	updated, _ = m.Update(TransitionMsg{Port: 3000, Active: false})
	m = updated.(Model)
	if m.flash != "port 3000 stopped listening" {
		t.Fatalf("unexpected flash: %q", m.flash)
	}
}

func TestViewTable_ExpiredFlashHidden(t *testing.T) {
	m := New(nil, "test", time.Second)
	m.scanning = false
	m.flash = "port 3000 started listening"
	m.flashUntil = time.Now().Add(-time.Second)

	if strings.Contains(m.View(), "port 3000") {
		t.Error("expired flash must not render")
	}
}
