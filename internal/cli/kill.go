package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var forceKill bool

var killCmd = &cobra.Command{
	Use:   "kill <port>",
	Short: "Kill the process listening on a port",
	Long: `Terminate the process listening on the specified port.

By default the two-stage protocol is used: SIGTERM, a short grace period
for cleanup, then an unconditional SIGKILL. With --force only SIGKILL is
sent.`,
	Args: cobra.ExactArgs(1),
	RunE: runKill,
}

func init() {
	killCmd.Flags().BoolVar(&forceKill, "force", false, "Send SIGKILL immediately, skipping the graceful stage")
}

func runKill(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("no process listening on port %d", portNum)
	}

	// Usually one owning process, but a port can be bound by several PIDs
	// (e.g. SO_REUSEPORT); kill them all.
	seen := map[int]bool{}
	for _, r := range records {
		if seen[r.PID] {
			continue
		}
		seen[r.PID] = true

		var ok bool
		if forceKill {
			fmt.Printf("Force killing %s (PID %d) on port %d...\n", r.Process, r.PID, r.Port)
			ok = app.monitor.KillProcess(ctx, r.PID, true)
		} else {
			fmt.Printf("Terminating %s (PID %d) on port %d...\n", r.Process, r.PID, r.Port)
			ok = app.monitor.KillProcessGracefully(ctx, r.PID)
		}

		if !ok {
			fmt.Printf("Failed to kill PID %d. Try again with elevated privileges (sudo).\n", r.PID)
			os.Exit(1)
		}
		fmt.Printf("Process %s (PID %d) terminated.\n", r.Process, r.PID)
	}

	return nil
}
