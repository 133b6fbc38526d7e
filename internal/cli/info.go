package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arjenw/portward/internal/port"
	"github.com/arjenw/portward/internal/process"
)

var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Detailed info about a port and its process",
	Long:  "Display detailed information about the process listening on the specified port.",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	portNum, err := parsePortArg(args[0])
	if err != nil {
		return err
	}

	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}

	ctx := context.Background()
	records, err := app.scanner.FindByPort(ctx, portNum)
	if err != nil {
		return fmt.Errorf("failed to find processes on port %d: %w", portNum, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no process found on port %d", portNum)
	}

	target := records[0]
	info, infoErr := process.GetInfo(ctx, target.PID)

	if jsonOutput {
		return printInfoJSON(target, info)
	}
	return printInfoHuman(target, info, infoErr)
}

func printInfoHuman(r port.PortRecord, info *process.Info, infoErr error) error {
	fmt.Printf("Port:        %d\n", r.Port)
	fmt.Printf("Address:     %s\n", r.Address)
	fmt.Printf("Process:     %s (PID %d)\n", r.Process, r.PID)

	if info != nil {
		if info.Command != "" {
			fmt.Printf("Command:     %s\n", port.TruncateCommand(info.Command))
		} else {
			fmt.Printf("Command:     %s\n", r.Command)
		}
		fmt.Printf("User:        %s\n", info.User)

		if !info.StartTime.IsZero() {
			ago := time.Since(info.StartTime).Truncate(time.Second)
			fmt.Printf("Started:     %s ago (%s)\n",
				formatDuration(ago),
				info.StartTime.Format("2006-01-02 15:04:05"))
		}

		fmt.Printf("CPU:         %.1f%%\n", info.CPUPercent)
		fmt.Printf("Memory:      %s (RSS)\n", formatBytes(info.MemRSS))

		if info.PPID > 0 {
			fmt.Printf("Parent PID:  %d\n", info.PPID)
		}
		if len(info.Children) > 0 {
			childStrs := make([]string, len(info.Children))
			for i, c := range info.Children {
				childStrs[i] = strconv.Itoa(c)
			}
			fmt.Printf("Children:    %s\n", strings.Join(childStrs, ", "))
		}
	} else {
		fmt.Printf("Command:     %s\n", r.Command)
		fmt.Printf("User:        %s\n", r.User)
		if infoErr != nil {
			fmt.Printf("Details:     (unavailable: %v)\n", infoErr)
		}
	}

	return nil
}

func printInfoJSON(r port.PortRecord, info *process.Info) error {
	type jsonInfo struct {
		Port       int     `json:"port"`
		Address    string  `json:"address"`
		PID        int     `json:"pid"`
		Process    string  `json:"process"`
		Command    string  `json:"command,omitempty"`
		User       string  `json:"user"`
		StartTime  string  `json:"start_time,omitempty"`
		CPUPercent float64 `json:"cpu_percent,omitempty"`
		MemoryRSS  int64   `json:"memory_rss_bytes,omitempty"`
		PPID       int     `json:"ppid,omitempty"`
		Children   []int   `json:"children,omitempty"`
	}

	out := jsonInfo{
		Port:    r.Port,
		Address: r.Address,
		PID:     r.PID,
		Process: r.Process,
		Command: r.Command,
		User:    r.User,
	}

	if info != nil {
		if info.Command != "" {
			out.Command = port.TruncateCommand(info.Command)
		}
		if info.User != "" {
			out.User = info.User
		}
		out.CPUPercent = info.CPUPercent
		out.MemoryRSS = info.MemRSS
		out.PPID = info.PPID
		out.Children = info.Children
		if !info.StartTime.IsZero() {
			out.StartTime = info.StartTime.Format(time.RFC3339)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	hours := int(d.Hours())
	if hours < 24 {
		return fmt.Sprintf("%d hours", hours)
	}
	days := hours / 24
	return fmt.Sprintf("%d days %d hours", days, hours%24)
}

func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
