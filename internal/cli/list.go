package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arjenw/portward/internal/port"
)

var (
	filterPort int
	filterProc string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all listening ports",
	Long:  "Display a table of listening TCP ports, favorites first.",
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&filterPort, "port", 0, "Filter by port number")
	listCmd.Flags().StringVar(&filterProc, "process", "", "Filter by process name")
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}

	records := app.monitor.Scan(context.Background())
	records = filterRecords(records)

	if jsonOutput {
		return printJSON(records)
	}
	return printTable(app, records)
}

func filterRecords(records []port.PortRecord) []port.PortRecord {
	var filtered []port.PortRecord
	for _, r := range records {
		if filterPort > 0 && r.Port != filterPort {
			continue
		}
		if filterProc != "" && !strings.Contains(strings.ToLower(r.Process), strings.ToLower(filterProc)) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func printTable(app *app, records []port.PortRecord) error {
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
		if len(cmd) > 60 {
			cmd = cmd[:57] + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.Port, r.Address, r.PID, r.Process, r.User, fav, cmd)
	}
	return w.Flush()
}

func printJSON(records []port.PortRecord) error {
	type jsonRecord struct {
		Port    int    `json:"port"`
		Address string `json:"address"`
		PID     int    `json:"pid"`
		Process string `json:"process"`
		User    string `json:"user"`
		Command string `json:"command"`
		FD      string `json:"fd"`
		Active  bool   `json:"active"`
	}

	out := make([]jsonRecord, len(records))
	for i, r := range records {
		out[i] = jsonRecord{
			Port:    r.Port,
			Address: r.Address,
			PID:     r.PID,
			Process: r.Process,
			User:    r.User,
			Command: r.Command,
			FD:      r.FD,
			Active:  r.Active,
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
