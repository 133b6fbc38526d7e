package process

import (
	"context"
	"fmt"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

// Info holds detailed information about a running process, used by the
// info view. This is enrichment on top of the scan records; a lookup
// failure here never affects the port inventory itself.
type Info struct {
	PID        int
	PPID       int
	Name       string
	Command    string // full command line
	User       string
	StartTime  time.Time
	CPUPercent float64
	MemRSS     int64 // bytes
	Children   []int
}

// GetInfo retrieves detailed information for a process. Individual fields
// degrade to zero values when unavailable; only a missing process is an
// error.
func GetInfo(ctx context.Context, pid int) (*Info, error) {
	p, err := gops.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d not found: %w", pid, err)
	}

	info := &Info{PID: pid}

	if name, err := p.NameWithContext(ctx); err == nil {
		info.Name = name
	}
	if cmdline, err := p.CmdlineWithContext(ctx); err == nil {
		info.Command = cmdline
	}
	if user, err := p.UsernameWithContext(ctx); err == nil {
		info.User = user
	}
	if ppid, err := p.PpidWithContext(ctx); err == nil {
		info.PPID = int(ppid)
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil && created > 0 {
		info.StartTime = time.UnixMilli(created)
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		info.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		info.MemRSS = int64(mem.RSS)
	}
	if children, err := p.ChildrenWithContext(ctx); err == nil {
		for _, c := range children {
			info.Children = append(info.Children, int(c.Pid))
		}
	}

	return info, nil
}

// IsRunning reports whether a process with the given PID exists.
func IsRunning(ctx context.Context, pid int) bool {
	exists, err := gops.PidExistsWithContext(ctx, int32(pid))
	return err == nil && exists
}
