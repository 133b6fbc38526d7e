package port

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// CmdRunner abstracts shell command execution for testability.
type CmdRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealCmdRunner executes real shell commands.
type RealCmdRunner struct{}

// Run executes a command and returns its stdout. Stderr is suppressed to
// prevent it from leaking into TUI output. cmd.Output drains the stdout
// pipe before waiting for process exit, so a child that produces more
// output than the OS pipe buffer cannot deadlock the scan.
func (r *RealCmdRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = io.Discard
	return cmd.Output()
}

// MockCmdRunner returns canned responses for testing.
type MockCmdRunner struct {
	Output []byte
	Err    error
}

// Run returns the pre-configured output and error.
func (m *MockCmdRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return m.Output, m.Err
}

// MockResponse holds a single command's output and error.
type MockResponse struct {
	Output []byte
	Err    error
}

// MultiMockCmdRunner returns different responses based on the command.
// Keys are "name arg1 arg2 ..." strings. Safe for concurrent use; the
// scanner runs its enumerators in parallel.
type MultiMockCmdRunner struct {
	Responses map[string]MockResponse

	mu    sync.Mutex
	calls []string
}

// Run looks up the command key and returns its pre-configured response.
// Falls back to empty output and nil error if no match is found.
func (m *MultiMockCmdRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	key := name
	if len(args) > 0 {
		key = name + " " + strings.Join(args, " ")
	}
	m.mu.Lock()
	m.calls = append(m.calls, key)
	m.mu.Unlock()
	if resp, ok := m.Responses[key]; ok {
		return resp.Output, resp.Err
	}
	return nil, nil
}

// Calls returns the commands recorded so far.
func (m *MultiMockCmdRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
