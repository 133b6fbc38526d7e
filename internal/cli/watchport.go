package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arjenw/portward/internal/inventory"
)

var (
	watchOnStart bool
	watchOnStop  bool
)

var watchportCmd = &cobra.Command{
	Use:   "watchport",
	Short: "Manage watched ports",
	Long: `A watched port fires a notification when its active/inactive status
changes across scan cycles. Use "portward watch" or the TUI to keep a
scanning loop running.`,
	RunE: runWatchportList,
}

var watchportAddCmd = &cobra.Command{
	Use:   "add <port>",
	Short: "Watch a port for start/stop transitions",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchportAdd,
}

var watchportRmCmd = &cobra.Command{
	Use:   "rm <port>",
	Short: "Stop watching a port",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchportRm,
}

func init() {
	watchportAddCmd.Flags().BoolVar(&watchOnStart, "on-start", true, "Notify when the port starts listening")
	watchportAddCmd.Flags().BoolVar(&watchOnStop, "on-stop", true, "Notify when the port stops listening")
	watchportCmd.AddCommand(watchportAddCmd)
	watchportCmd.AddCommand(watchportRmCmd)
}

func runWatchportList(cmd *cobra.Command, args []string) error {
	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}

	watches := app.monitor.Store().Watches()

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(watches)
	}

	if len(watches) == 0 {
		fmt.Println("No watched ports. Add one with 'portward watchport add <port>'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tON-START\tON-STOP\tID")
	for _, spec := range watches {
		fmt.Fprintf(w, "%d\t%t\t%t\t%s\n", spec.Port, spec.NotifyOnStart, spec.NotifyOnStop, spec.ID)
	}
	return w.Flush()
}

func runWatchportAdd(cmd *cobra.Command, args []string) error {
	portNum, err := parsePortArg(args[0])
	if err != nil {
		return err
	}

	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}

	spec := inventory.NewWatchSpec(portNum, watchOnStart, watchOnStop)
	app.monitor.Store().AddWatch(spec)
	app.savePrefs()
	fmt.Printf("Watching port %d (on-start: %t, on-stop: %t).\n", portNum, watchOnStart, watchOnStop)
	return nil
}

func runWatchportRm(cmd *cobra.Command, args []string) error {
	portNum, err := parsePortArg(args[0])
	if err != nil {
		return err
	}

	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}

	removed := app.monitor.Store().RemoveWatchByPort(portNum)
	if removed == 0 {
		return fmt.Errorf("port %d is not watched", portNum)
	}
	app.savePrefs()
	fmt.Printf("Stopped watching port %d.\n", portNum)
	return nil
}
