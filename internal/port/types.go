package port

import (
	"fmt"
	"strconv"
)

// PortRecord represents one observed binding of a process to a listening
// TCP port. Records are built fresh on every scan cycle and never mutated
// in place; a new scan supersedes the previous set wholesale.
type PortRecord struct {
	Port    int
	PID     int
	Process string // short process name, un-escaped
	Address string // bound host/interface, "*" for wildcard
	User    string // owning user, "-" for placeholders
	Command string // best-effort full command line, truncated
	FD      string // raw file descriptor token, opaque
	Active  bool   // false for synthesized placeholders
}

// Key returns the identity used for de-duplication and diffing. Two
// records with the same (port, pid) pair are the same binding even if
// they were scanned at different times.
func (r PortRecord) Key() string {
	return strconv.Itoa(r.Port) + "/" + strconv.Itoa(r.PID)
}

// String returns a human-readable representation of the record.
func (r PortRecord) String() string {
	if !r.Active {
		return fmt.Sprintf("%d (inactive)", r.Port)
	}
	return fmt.Sprintf("%d (PID %d, %s)", r.Port, r.PID, r.Process)
}

// Placeholder synthesizes an inactive record for a tracked port that has
// no live binding. PID 0 is reserved for this case.
func Placeholder(portNum int) PortRecord {
	return PortRecord{
		Port:    portNum,
		PID:     0,
		Process: "-",
		Address: "*",
		User:    "-",
		FD:      "-",
		Active:  false,
	}
}
