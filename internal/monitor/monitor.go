// Package monitor wires the scanner, signaler, inventory store, and
// refresh scheduler into the single facade the CLI and TUI consume.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arjenw/portward/internal/inventory"
	"github.com/arjenw/portward/internal/notify"
	"github.com/arjenw/portward/internal/port"
	"github.com/arjenw/portward/internal/process"
	"github.com/arjenw/portward/internal/scheduler"
)

// Monitor owns one scan-and-kill pipeline. Collaborators are injected at
// construction; there is no ambient global state.
type Monitor struct {
	scanner  port.Scanner
	signaler process.Signaler
	store    *inventory.Store
	sched    *scheduler.Scheduler
	notifier notify.Notifier
	log      zerolog.Logger

	mu          sync.Mutex
	transitions []func(inventory.Transition)
}

// New creates a Monitor. A nil notifier disables notifications.
func New(scanner port.Scanner, signaler process.Signaler, store *inventory.Store, interval time.Duration, notifier notify.Notifier, log zerolog.Logger) *Monitor {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	m := &Monitor{
		scanner:  scanner,
		signaler: signaler,
		store:    store,
		notifier: notifier,
		log:      log.With().Str("component", "monitor").Logger(),
	}
	m.sched = scheduler.New(interval, m.scanCycle, log)
	return m
}

// Store exposes the inventory for favorite/watch management and change
// subscriptions.
func (m *Monitor) Store() *inventory.Store {
	return m.store
}

// scanCycle is the scheduler's scan function: enumerate, reconcile, then
// fan out any watched-port transitions.
func (m *Monitor) scanCycle(ctx context.Context) {
	records := m.scanner.Scan(ctx)
	_, transitions := m.store.Apply(records)
	for _, t := range transitions {
		m.emit(t)
	}
}

func (m *Monitor) emit(t inventory.Transition) {
	m.log.Info().Int("port", t.Port).Bool("active", t.Active).Msg("watched port transition")

	if t.Active {
		m.notifier.Notify("Port active", fmt.Sprintf("Port %d started listening", t.Port))
	} else {
		m.notifier.Notify("Port inactive", fmt.Sprintf("Port %d stopped listening", t.Port))
	}

	m.mu.Lock()
	handlers := append([]func(inventory.Transition){}, m.transitions...)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(t)
	}
}

// OnTransition registers a callback for watched-port transitions.
// Callbacks run on the scanning goroutine and should return quickly.
func (m *Monitor) OnTransition(fn func(inventory.Transition)) {
	m.mu.Lock()
	m.transitions = append(m.transitions, fn)
	m.mu.Unlock()
}

// Scan runs one guarded scan cycle and returns the reconciled canonical
// list. If a scan is already in flight it returns the current state
// without starting another.
func (m *Monitor) Scan(ctx context.Context) []port.PortRecord {
	m.sched.Refresh(ctx)
	return m.store.CurrentPorts()
}

// Refresh requests one on-demand scan cycle. Returns false if a scan was
// already in flight (the call was a no-op).
func (m *Monitor) Refresh(ctx context.Context) bool {
	return m.sched.Refresh(ctx)
}

// StartAutoRefresh launches the periodic scan loop.
func (m *Monitor) StartAutoRefresh(ctx context.Context) {
	m.sched.Start(ctx)
}

// StopAutoRefresh cancels the periodic scan loop. Idempotent.
func (m *Monitor) StopAutoRefresh() {
	m.sched.Stop()
}

// CurrentPorts returns the last reconciled canonical list.
func (m *Monitor) CurrentPorts() []port.PortRecord {
	return m.store.CurrentPorts()
}

// KillProcess sends a single graceful or forceful signal to a PID. On
// success the binding is removed optimistically and a confirming scan
// settles the state; the scan is authoritative and may re-add the record.
func (m *Monitor) KillProcess(ctx context.Context, pid int, forceful bool) bool {
	ok := m.signaler.SendSignal(ctx, pid, forceful)
	if ok {
		m.settleKill(ctx, pid)
	}
	return ok
}

// KillProcessGracefully runs the two-stage graceful-then-forced protocol
// against a PID, then settles the inventory.
func (m *Monitor) KillProcessGracefully(ctx context.Context, pid int) bool {
	ok := m.signaler.TerminateGracefully(ctx, pid)
	if ok {
		m.settleKill(ctx, pid)
	}
	return ok
}

func (m *Monitor) settleKill(ctx context.Context, pid int) {
	m.store.RemoveByPID(pid)
	if !m.sched.Refresh(ctx) {
		m.log.Debug().Int("pid", pid).Msg("confirming scan skipped, cycle already in flight")
	}
}
