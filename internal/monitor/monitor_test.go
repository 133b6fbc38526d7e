package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjenw/portward/internal/inventory"
	"github.com/arjenw/portward/internal/notify"
	"github.com/arjenw/portward/internal/port"
)

// fakeScanner returns scripted scan results and counts invocations.
type fakeScanner struct {
	mu      sync.Mutex
	results [][]port.PortRecord
	calls   int
}

func (f *fakeScanner) Scan(context.Context) []port.PortRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return nil
	}
	out := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return out
}

func (f *fakeScanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeSignaler records kill requests.
type fakeSignaler struct {
	sent     []string
	sendOK   bool
	killedOK bool
}

func (f *fakeSignaler) SendSignal(_ context.Context, pid int, forceful bool) bool {
	kind := "term"
	if forceful {
		kind = "kill"
	}
	f.sent = append(f.sent, kind)
	return f.sendOK
}

func (f *fakeSignaler) TerminateGracefully(_ context.Context, pid int) bool {
	f.sent = append(f.sent, "graceful")
	return f.killedOK
}

// recordingNotifier captures notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(title, _ string) {
	n.mu.Lock()
	n.titles = append(n.titles, title)
	n.mu.Unlock()
}

func listening(portNum, pid int) port.PortRecord {
	return port.PortRecord{Port: portNum, PID: pid, Process: "p", Address: "*", User: "u", Active: true}
}

func newTestMonitor(scanner port.Scanner, signaler *fakeSignaler, notifier notify.Notifier) *Monitor {
	store := inventory.NewStore(zerolog.Nop())
	return New(scanner, signaler, store, time.Hour, notifier, zerolog.Nop())
}

func TestScan_PopulatesCanonicalState(t *testing.T) {
	scanner := &fakeScanner{results: [][]port.PortRecord{{listening(3000, 10), listening(80, 1)}}}
	m := newTestMonitor(scanner, &fakeSignaler{}, nil)

	records := m.Scan(context.Background())
	require.Len(t, records, 2)
	assert.Equal(t, 80, records[0].Port)
	assert.Equal(t, records, m.CurrentPorts())
}

func TestKillProcess_SettlesWithConfirmingScan(t *testing.T) {
	scanner := &fakeScanner{results: [][]port.PortRecord{
		{listening(80, 1), listening(3000, 10)}, // initial
		{listening(80, 1)},                      // confirming scan after kill
	}}
	signaler := &fakeSignaler{sendOK: true}
	m := newTestMonitor(scanner, signaler, nil)

	m.Scan(context.Background())
	require.Equal(t, 1, scanner.callCount())

	ok := m.KillProcess(context.Background(), 10, false)
	require.True(t, ok)
	assert.Equal(t, []string{"term"}, signaler.sent)
	assert.Equal(t, 2, scanner.callCount(), "a successful kill triggers a confirming scan")

	ports := m.CurrentPorts()
	require.Len(t, ports, 1)
	assert.Equal(t, 80, ports[0].Port)
}

func TestKillProcess_FailureSkipsSettle(t *testing.T) {
	scanner := &fakeScanner{results: [][]port.PortRecord{{listening(3000, 10)}}}
	signaler := &fakeSignaler{sendOK: false}
	m := newTestMonitor(scanner, signaler, nil)

	m.Scan(context.Background())
	before := scanner.callCount()

	ok := m.KillProcess(context.Background(), 10, true)
	assert.False(t, ok)
	assert.Equal(t, before, scanner.callCount(), "failed kill must not trigger a confirming scan")
	assert.Len(t, m.CurrentPorts(), 1, "record stays visible when the kill failed")
}

func TestKillProcessGracefully_Delegates(t *testing.T) {
	scanner := &fakeScanner{results: [][]port.PortRecord{
		{listening(3000, 10)},
		nil,
	}}
	signaler := &fakeSignaler{killedOK: true}
	m := newTestMonitor(scanner, signaler, nil)

	m.Scan(context.Background())
	ok := m.KillProcessGracefully(context.Background(), 10)
	require.True(t, ok)
	assert.Equal(t, []string{"graceful"}, signaler.sent)
	assert.Empty(t, m.CurrentPorts())
}

func TestWatchTransitionNotifications(t *testing.T) {
	scanner := &fakeScanner{results: [][]port.PortRecord{
		nil,                   // first cycle: port down, status recorded
		{listening(3000, 10)}, // second cycle: port up
		{listening(3000, 10)}, // third cycle: steady
	}}
	notifier := &recordingNotifier{}
	m := newTestMonitor(scanner, &fakeSignaler{}, notifier)
	m.Store().AddWatch(inventory.NewWatchSpec(3000, true, true))

	var events []inventory.Transition
	m.OnTransition(func(t inventory.Transition) { events = append(events, t) })

	m.Refresh(context.Background())
	assert.Empty(t, events, "first observation never fires")

	m.Refresh(context.Background())
	require.Len(t, events, 1)
	assert.True(t, events[0].Active)
	assert.Equal(t, []string{"Port active"}, notifier.titles)

	m.Refresh(context.Background())
	assert.Len(t, events, 1, "steady state fires nothing")
}

func TestRefresh_ReportsInFlightNoOp(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	scanner := &blockingScanner{started: started, release: block}
	m := newTestMonitor(scanner, &fakeSignaler{}, nil)

	go m.Refresh(context.Background())
	<-started

	assert.False(t, m.Refresh(context.Background()), "second refresh while scanning is a no-op")
	close(block)
}

type blockingScanner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingScanner) Scan(context.Context) []port.PortRecord {
	close(b.started)
	<-b.release
	return nil
}
