package port

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxCommandLen caps stored command lines; anything longer is cut and
// marked with an ellipsis.
const maxCommandLen = 200

// ParseListing parses the columnar output of lsof -iTCP -sTCP:LISTEN -P -n
// into a de-duplicated list of active records, sorted ascending by port.
// Each line after the header has fields:
//
//	COMMAND PID USER FD TYPE DEVICE SIZE/OFF NODE NAME [STATE]
//
// commands maps PID to a full command line; missing PIDs fall back to the
// un-escaped process name. Lines that cannot be fully parsed are dropped,
// never fatal.
func ParseListing(output string, commands map[int]string) []PortRecord {
	lines := strings.Split(output, "\n")
	if len(lines) < 2 {
		return nil
	}

	var records []PortRecord
	seen := make(map[string]struct{})
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		rec, ok := parseListingLine(line, commands)
		if !ok {
			continue
		}

		// First occurrence per (port, pid) wins.
		if _, dup := seen[rec.Key()]; dup {
			continue
		}
		seen[rec.Key()] = struct{}{}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Port < records[j].Port
	})
	return records
}

// parseListingLine parses a single lsof output line into a PortRecord.
func parseListingLine(line string, commands map[int]string) (PortRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return PortRecord{}, false
	}

	name := unescapeName(fields[0])

	pid, err := strconv.Atoi(fields[1])
	if err != nil {
		return PortRecord{}, false
	}

	addrField, ok := findAddressField(fields)
	if !ok {
		return PortRecord{}, false
	}

	host, portNum, err := ParseAddress(addrField)
	if err != nil {
		return PortRecord{}, false
	}

	command, ok := commands[pid]
	if !ok || command == "" {
		command = name
	}

	return PortRecord{
		Port:    portNum,
		PID:     pid,
		Process: name,
		Address: host,
		User:    fields[2],
		Command: command,
		FD:      fields[3],
		Active:  true,
	}, true
}

// findAddressField locates the NAME column by scanning from the end of the
// line toward index 8. The DEVICE column is hex (0x...) and SIZE/OFF is a
// size marker (0t...), so the first remaining column containing a colon is
// the address. Best-effort: trailing state annotations like "(LISTEN)" are
// skipped because they carry no colon.
func findAddressField(fields []string) (string, bool) {
	for i := len(fields) - 1; i >= 8; i-- {
		f := fields[i]
		if strings.HasPrefix(f, "0x") || strings.HasPrefix(f, "0t") {
			continue
		}
		if strings.Contains(f, ":") {
			return f, true
		}
	}
	return "", false
}

// unescapeName reverses the two escapes lsof applies to process names:
// \x20 for space and \x2f for slash. No other escapes are recognized.
func unescapeName(name string) string {
	name = strings.ReplaceAll(name, `\x20`, " ")
	name = strings.ReplaceAll(name, `\x2f`, "/")
	return name
}

// ParseCommandTable builds the PID to full-command map from ps output of
// the form:
//
//	PID COMMAND
//	1234 node server.js --port 3000
//
// Embedded spaces in the command are preserved; lines with an unparseable
// PID are skipped. Commands longer than 200 characters are truncated with
// a trailing ellipsis.
func ParseCommandTable(output string) map[int]string {
	commands := make(map[int]string)

	lines := strings.Split(output, "\n")
	if len(lines) < 2 {
		return commands
	}

	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		pidField, rest, found := strings.Cut(line, " ")
		if !found {
			continue
		}
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			continue
		}
		commands[pid] = TruncateCommand(strings.TrimSpace(rest))
	}
	return commands
}

// TruncateCommand caps a command line at 200 characters plus an ellipsis
// marker. The cut lands on a rune boundary so a multibyte character is
// never split mid-sequence.
func TruncateCommand(cmd string) string {
	if utf8.RuneCountInString(cmd) <= maxCommandLen {
		return cmd
	}
	runes := []rune(cmd)
	return string(runes[:maxCommandLen]) + "..."
}
