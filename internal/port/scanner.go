package port

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCommandTimeout bounds each enumerator invocation so a hung
// external tool cannot stall a scan cycle indefinitely. A timeout degrades
// to an empty result for that step.
const DefaultCommandTimeout = 5 * time.Second

// Scanner discovers processes bound to listening ports. A failed scan
// yields an empty list, never an error: the caller sees "no ports observed
// this cycle" and tries again on the next one.
type Scanner interface {
	Scan(ctx context.Context) []PortRecord
}

// LsofScanner implements Scanner on top of lsof for socket enumeration and
// ps for command-line enrichment.
type LsofScanner struct {
	runner  CmdRunner
	timeout time.Duration
	log     zerolog.Logger
}

// NewLsofScanner creates a scanner backed by lsof and ps. timeout bounds
// each enumerator invocation; timeout <= 0 falls back to
// DefaultCommandTimeout.
func NewLsofScanner(runner CmdRunner, timeout time.Duration, log zerolog.Logger) *LsofScanner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &LsofScanner{
		runner:  runner,
		timeout: timeout,
		log:     log.With().Str("component", "scanner").Logger(),
	}
}

// Scan performs one full scan cycle. The socket enumeration and the PID
// command lookup have no ordering dependency, so they run concurrently;
// both complete before parsing begins. Each step degrades independently:
// a failed lsof yields no records, a failed ps yields records whose
// command falls back to the process name.
func (s *LsofScanner) Scan(ctx context.Context) []PortRecord {
	var (
		wg      sync.WaitGroup
		lsofOut []byte
		lsofErr error
		psOut   []byte
		psErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		lsofOut, lsofErr = s.run(ctx, "lsof", "-iTCP", "-sTCP:LISTEN", "-P", "-n")
	}()
	go func() {
		defer wg.Done()
		psOut, psErr = s.run(ctx, "ps", "axo", "pid,command")
	}()
	wg.Wait()

	if lsofErr != nil {
		s.log.Warn().Err(lsofErr).Msg("socket enumeration failed, reporting no ports this cycle")
		return nil
	}

	commands := map[int]string{}
	if psErr != nil {
		s.log.Debug().Err(psErr).Msg("command lookup failed, falling back to process names")
	} else {
		commands = ParseCommandTable(string(psOut))
	}

	records := ParseListing(string(lsofOut), commands)
	s.log.Debug().Int("records", len(records)).Msg("scan complete")
	return records
}

// FindByPort returns the active records bound to a single port. Unlike
// Scan, lookup failures surface as errors: the kill and info commands need
// to distinguish "nothing there" from "could not look".
func (s *LsofScanner) FindByPort(ctx context.Context, portNum int) ([]PortRecord, error) {
	out, err := s.run(ctx, "lsof", fmt.Sprintf("-iTCP:%d", portNum), "-sTCP:LISTEN", "-P", "-n")
	if err != nil {
		return nil, fmt.Errorf("failed to run lsof for port %d: %w", portNum, err)
	}

	psOut, psErr := s.run(ctx, "ps", "axo", "pid,command")
	commands := map[int]string{}
	if psErr == nil {
		commands = ParseCommandTable(string(psOut))
	}

	var matched []PortRecord
	for _, rec := range ParseListing(string(out), commands) {
		if rec.Port == portNum {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

func (s *LsofScanner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.runner.Run(ctx, name, args...)
}
