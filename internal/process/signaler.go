package process

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/arjenw/portward/internal/port"
)

// gracePeriod is how long a process gets to honor SIGTERM before the
// unconditional SIGKILL follows. A compromise between responsiveness and
// giving well-behaved processes time to flush state.
const gracePeriod = 500 * time.Millisecond

// protectedPIDs lists PIDs that must never be signaled.
var protectedPIDs = map[int]bool{
	0: true,
	1: true,
}

// Signaler sends termination signals to processes. All failure modes
// (missing binary, permission denied, no such process) surface as a false
// result, never an error: the caller decides whether to suggest elevated
// privileges.
type Signaler interface {
	SendSignal(ctx context.Context, pid int, forceful bool) bool
	TerminateGracefully(ctx context.Context, pid int) bool
}

// ExecSignaler delivers signals through the kill(1) command, reporting
// success from its exit status.
type ExecSignaler struct {
	runner port.CmdRunner
	log    zerolog.Logger

	// sleep is replaceable in tests so the grace period does not slow
	// the suite down.
	sleep func(time.Duration)
}

// NewExecSignaler creates a signaler backed by kill(1).
func NewExecSignaler(runner port.CmdRunner, log zerolog.Logger) *ExecSignaler {
	return &ExecSignaler{
		runner: runner,
		log:    log.With().Str("component", "signaler").Logger(),
		sleep:  time.Sleep,
	}
}

// SendSignal delivers SIGTERM (forceful=false) or SIGKILL (forceful=true)
// to the given PID. Returns true only if the invocation reports success.
func (s *ExecSignaler) SendSignal(ctx context.Context, pid int, forceful bool) bool {
	if protectedPIDs[pid] {
		s.log.Warn().Int("pid", pid).Msg("refusing to signal protected PID")
		return false
	}

	sig := "-TERM"
	if forceful {
		sig = "-KILL"
	}

	_, err := s.runner.Run(ctx, "kill", sig, strconv.Itoa(pid))
	if err != nil {
		s.log.Debug().Err(err).Int("pid", pid).Str("signal", sig).Msg("signal delivery failed")
		return false
	}
	return true
}

// TerminateGracefully runs the two-stage kill protocol: SIGTERM, a fixed
// grace period if the SIGTERM was delivered, then an unconditional SIGKILL.
// The final SIGKILL runs even when SIGTERM failed so that termination is
// attempted regardless of whether the process honors graceful shutdown.
// The overall result is the SIGKILL's success flag.
func (s *ExecSignaler) TerminateGracefully(ctx context.Context, pid int) bool {
	if s.SendSignal(ctx, pid, false) {
		s.sleep(gracePeriod)
	}
	return s.SendSignal(ctx, pid, true)
}
