package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/arjenw/portward/internal/inventory"
	"github.com/arjenw/portward/internal/port"
)

var (
	watchInterval int
	watchAlert    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Auto-refresh port table in terminal",
	Long: `Continuously display listening ports with periodic refresh.

Watched-port transitions (configured with "portward watchport add") are
announced inline and through the notification sink as they happen.

With --alert, monitors for new port listeners that appear after the initial
scan. When a new listener is detected, prints an alert and exits with code 1.
Useful for security monitoring.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchInterval, "interval", 0, "Refresh interval in seconds (default from config)")
	watchCmd.Flags().IntVar(&filterPort, "port", 0, "Filter by port number")
	watchCmd.Flags().StringVar(&filterProc, "process", "", "Filter by process name")
	watchCmd.Flags().BoolVar(&watchAlert, "alert", false, "Alert and exit on new port listeners")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchAlert {
		return runWatchAlert(cmd, args)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	intervalOverride = watchInterval
	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}

	app.monitor.OnTransition(func(t inventory.Transition) {
		verb := "stopped"
		if t.Active {
			verb = "started"
		}
		fmt.Fprintf(os.Stderr, "watched port %d %s listening\n", t.Port, verb)
	})

	// Redraw whenever the canonical state changes; the scheduler drives
	// the scans.
	redraw := make(chan struct{}, 1)
	app.monitor.Store().Subscribe(func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	})

	app.monitor.StartAutoRefresh(ctx)
	defer app.monitor.StopAutoRefresh()

	renderWatch(app)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped watching.")
			return nil
		case <-redraw:
			renderWatch(app)
		}
	}
}

func runWatchAlert(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	intervalOverride = watchInterval
	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}

	// Baseline scan; only listeners appearing after this point alert.
	baseline := portKeySet(filterRecords(app.monitor.Scan(ctx)))

	if !jsonOutput {
		fmt.Printf("Monitoring %d port(s) for new listeners... (interval: %ds)\n",
			len(baseline), app.cfg.RefreshInterval)
	}

	ticker := time.NewTicker(time.Duration(app.cfg.RefreshInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !jsonOutput {
				fmt.Println("\nStopped watching.")
			}
			return nil
		case <-ticker.C:
			current := filterRecords(app.monitor.Scan(ctx))
			newListeners := findNewListeners(current, baseline)
			if len(newListeners) > 0 {
				if jsonOutput {
					return printAlertJSON(newListeners)
				}
				return printAlertHuman(newListeners)
			}
		}
	}
}

// portKeySet builds the set of ports with a live listener.
func portKeySet(records []port.PortRecord) map[int]struct{} {
	keys := make(map[int]struct{}, len(records))
	for _, r := range records {
		if !r.Active {
			continue
		}
		keys[r.Port] = struct{}{}
	}
	return keys
}

// findNewListeners returns active records on ports absent from the
// baseline set. Placeholders never count as listeners.
func findNewListeners(current []port.PortRecord, baseline map[int]struct{}) []port.PortRecord {
	var fresh []port.PortRecord
	for _, r := range current {
		if !r.Active {
			continue
		}
		if _, exists := baseline[r.Port]; !exists {
			fresh = append(fresh, r)
		}
	}
	return fresh
}

// alertExitError is returned when --alert detects new ports.
// The CLI should exit with code 1.
type alertExitError struct {
	count int
}

func (e *alertExitError) Error() string {
	return fmt.Sprintf("alert: %d new port listener(s) detected", e.count)
}

func printAlertHuman(records []port.PortRecord) error {
	fmt.Printf("\nALERT: %d new port listener(s) detected!\n\n", len(records))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tADDRESS\tPID\tPROCESS\tUSER")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			r.Port, r.Address, r.PID, r.Process, r.User)
	}
	w.Flush()

	return &alertExitError{count: len(records)}
}

func printAlertJSON(records []port.PortRecord) error {
	type alertEntry struct {
		Port    int    `json:"port"`
		Address string `json:"address"`
		PID     int    `json:"pid"`
		Process string `json:"process"`
		User    string `json:"user"`
		Command string `json:"command"`
	}

	type alertOutput struct {
		Alert   string       `json:"alert"`
		Count   int          `json:"count"`
		Entries []alertEntry `json:"entries"`
	}

	out := alertOutput{
		Alert:   "new_port_listeners",
		Count:   len(records),
		Entries: make([]alertEntry, len(records)),
	}
	for i, r := range records {
		out.Entries[i] = alertEntry{
			Port:    r.Port,
			Address: r.Address,
			PID:     r.PID,
			Process: r.Process,
			User:    r.User,
			Command: r.Command,
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode alert JSON: %w", err)
	}

	return &alertExitError{count: len(records)}
}

func renderWatch(app *app) {
	records := filterRecords(app.monitor.CurrentPorts())

	// Clear screen.
	fmt.Print("\033[2J\033[H")

	active := 0
	for _, r := range records {
		if r.Active {
			active++
		}
	}
	fmt.Printf("portward watch | Listening: %d  Tracked: %d | %s | Ctrl+C to stop\n\n",
		active, len(records), time.Now().Format("15:04:05"))

	if len(records) == 0 {
		fmt.Println("No ports found matching filter.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tADDRESS\tPID\tPROCESS\tUSER\tFAV\tCOMMAND")
	for _, r := range records {
		fav := ""
		if app.monitor.Store().IsFavorite(r.Port) {
			fav = "*"
		}
		if !r.Active {
			fmt.Fprintf(w, "%d\t-\t-\t(inactive)\t-\t%s\t-\n", r.Port, fav)
			continue
		}
		cmd := r.Command
		if len(cmd) > 40 {
			cmd = cmd[:37] + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.Port, r.Address, r.PID, r.Process, r.User, fav, cmd)
	}
	w.Flush()
}
