package tui

import (
	"context"
	"fmt"
	"os/user"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/arjenw/portward/internal/monitor"
	"github.com/arjenw/portward/internal/port"
	"github.com/arjenw/portward/internal/process"
	"github.com/arjenw/portward/internal/scheduler"
)

// viewState tracks which screen the TUI is currently showing.
type viewState int

const (
	viewTable viewState = iota
	viewInfo
	viewKillConfirm
	viewKillResult
	viewFilter
)

// sortField defines what column to sort by.
type sortField int

const (
	sortByPort sortField = iota
	sortByPID
	sortByProcess
)

// Messages for async operations.
type scanDoneMsg struct {
	records []port.PortRecord
}

type tickMsg time.Time

// TransitionMsg is sent into the program when a watched port changes
// status, so the table header can flash the event.
type TransitionMsg struct {
	Port   int
	Active bool
}

// flashDuration is how long a transition announcement stays in the header.
const flashDuration = 4 * time.Second

type killDoneMsg struct {
	pid     int
	process string
	port    int
	ok      bool
	forced  bool
}

type infoDoneMsg struct {
	info *process.Info
	err  error
}

// Model is the main bubbletea model for the portward TUI.
type Model struct {
	monitor  *monitor.Monitor
	version  string
	interval time.Duration
	records  []port.PortRecord
	filtered []int // indices into records for currently displayed items

	flash      string
	flashUntil time.Time

	cursor       int
	scrollOffset int
	sortBy       sortField
	searchQuery  string
	paused       bool

	// Info view state.
	infoRecord *port.PortRecord
	infoData   *process.Info
	infoErr    error

	// Kill confirmation state.
	killRecord *port.PortRecord
	killResult string
	killFailed bool

	currentUser string
	scanning    bool
	spinner     spinner.Model

	width  int
	height int

	currentView viewState
}

// New creates a new TUI model driven by the monitor facade. interval is
// the auto-refresh cadence; interval <= 0 falls back to the scheduler
// default.
func New(mon *monitor.Monitor, version string, interval time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorCyan)

	currentUser := "unknown"
	if u, err := user.Current(); err == nil {
		currentUser = u.Username
	}

	if interval <= 0 {
		interval = scheduler.DefaultInterval
	}

	return Model{
		monitor:     mon,
		version:     version,
		interval:    interval,
		currentUser: currentUser,
		scanning:    true,
		spinner:     sp,
		currentView: viewTable,
	}
}

// Init starts the spinner and kicks off the initial scan.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.doScan(), m.tickCmd())
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// doScan runs one guarded scan cycle off the UI loop. The monitor's
// in-flight guard means a tick landing during a slow scan is a no-op.
func (m Model) doScan() tea.Cmd {
	mon := m.monitor
	return func() tea.Msg {
		records := mon.Scan(context.Background())
		return scanDoneMsg{records: records}
	}
}

func (m Model) doKill(pid int, processName string, portNum int, force bool) tea.Cmd {
	mon := m.monitor
	return func() tea.Msg {
		ctx := context.Background()
		if force {
			ok := mon.KillProcess(ctx, pid, true)
			return killDoneMsg{pid: pid, process: processName, port: portNum, ok: ok, forced: true}
		}
		ok := mon.KillProcessGracefully(ctx, pid)
		return killDoneMsg{pid: pid, process: processName, port: portNum, ok: ok}
	}
}

func (m Model) doGetInfo(pid int) tea.Cmd {
	return func() tea.Msg {
		info, err := process.GetInfo(context.Background(), pid)
		return infoDoneMsg{info: info, err: err}
	}
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.scanning {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tickMsg:
		if !m.paused && m.currentView == viewTable {
			return m, tea.Batch(m.doScan(), m.tickCmd())
		}
		return m, m.tickCmd()

	case TransitionMsg:
		verb := "stopped"
		if msg.Active {
			verb = "started"
		}
		m.flash = fmt.Sprintf("port %d %s listening", msg.Port, verb)
		m.flashUntil = time.Now().Add(flashDuration)
		return m, nil

	case scanDoneMsg:
		m.scanning = false
		m.records = msg.records
		m.sortRecords()
		m.rebuildFiltered()
		return m, nil

	case killDoneMsg:
		m.killFailed = !msg.ok
		if msg.ok {
			m.killResult = fmt.Sprintf("Killed %s (PID %d) on port %d", msg.process, msg.pid, msg.port)
			if msg.forced {
				m.killResult = fmt.Sprintf("Force killed %s (PID %d) on port %d", msg.process, msg.pid, msg.port)
			}
		} else {
			m.killResult = fmt.Sprintf("Failed to kill %s (PID %d). Try running with elevated privileges.",
				msg.process, msg.pid)
		}
		m.currentView = viewKillResult
		// The kill already triggered a confirming scan; pick up its result.
		return m, m.doScan()

	case infoDoneMsg:
		m.infoData = msg.info
		m.infoErr = msg.err
		m.currentView = viewInfo
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.currentView {
		case viewTable:
			return m.updateTable(msg)
		case viewInfo:
			return m.updateInfo(msg)
		case viewKillConfirm:
			return m.updateKillConfirm(msg)
		case viewKillResult:
			return m.updateKillResult(msg)
		case viewFilter:
			return m.updateFilter(msg)
		}
	}

	return m, nil
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		if len(m.filtered) > 0 && m.cursor < len(m.filtered)-1 {
			m.cursor++
			m.ensureCursorVisible()
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.ensureCursorVisible()
		}
	case "K":
		if rec := m.selectedRecord(); rec != nil && rec.Active {
			m.killRecord = rec
			m.currentView = viewKillConfirm
		}
	case "f":
		if rec := m.selectedRecord(); rec != nil {
			store := m.monitor.Store()
			if store.IsFavorite(rec.Port) {
				store.RemoveFavorite(rec.Port)
			} else {
				store.AddFavorite(rec.Port)
			}
			return m, m.doScan()
		}
	case "i", "enter":
		if rec := m.selectedRecord(); rec != nil && rec.Active {
			m.infoRecord = rec
			m.infoData = nil
			m.infoErr = nil
			return m, m.doGetInfo(rec.PID)
		}
	case "r":
		m.scanning = true
		return m, tea.Batch(m.doScan(), m.spinner.Tick)
	case "s":
		m.sortBy = (m.sortBy + 1) % 3
		m.sortRecords()
		m.rebuildFiltered()
	case "p":
		m.paused = !m.paused
	case "/":
		m.currentView = viewFilter
		m.searchQuery = ""
	case "esc":
		if m.searchQuery != "" {
			m.searchQuery = ""
			m.rebuildFiltered()
		}
	}
	return m, nil
}

func (m Model) updateInfo(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		m.currentView = viewTable
	case "K":
		if m.infoRecord != nil {
			m.killRecord = m.infoRecord
			m.currentView = viewKillConfirm
		}
	}
	return m, nil
}

func (m Model) updateKillConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		if m.killRecord != nil {
			r := m.killRecord
			return m, m.doKill(r.PID, r.Process, r.Port, false)
		}
	case "F":
		if m.killRecord != nil {
			r := m.killRecord
			return m, m.doKill(r.PID, r.Process, r.Port, true)
		}
	case "n", "esc", "N":
		m.currentView = viewTable
		m.killRecord = nil
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateKillResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "enter", "backspace":
		m.currentView = viewTable
		m.killRecord = nil
		m.killResult = ""
		m.killFailed = false
		m.scanning = true
		return m, tea.Batch(m.doScan(), m.spinner.Tick)
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.currentView = viewTable
		m.rebuildFiltered()
	case "esc":
		m.currentView = viewTable
		m.searchQuery = ""
		m.rebuildFiltered()
	case "backspace":
		if len(m.searchQuery) > 0 {
			m.searchQuery = m.searchQuery[:len(m.searchQuery)-1]
			m.rebuildFiltered()
		}
	default:
		key := msg.String()
		if len(key) == 1 {
			m.searchQuery += key
			m.rebuildFiltered()
		}
	}
	return m, nil
}

func (m *Model) selectedRecord() *port.PortRecord {
	if len(m.filtered) == 0 || m.cursor < 0 || m.cursor >= len(m.filtered) {
		return nil
	}
	idx := m.filtered[m.cursor]
	if idx >= len(m.records) {
		return nil
	}
	rec := m.records[idx]
	return &rec
}

// sortRecords re-sorts within the canonical favorites-first partitioning:
// favorites always stay on top, the chosen field orders within each
// partition.
func (m *Model) sortRecords() {
	store := m.monitor.Store()
	sort.SliceStable(m.records, func(i, j int) bool {
		fi, fj := store.IsFavorite(m.records[i].Port), store.IsFavorite(m.records[j].Port)
		if fi != fj {
			return fi
		}
		switch m.sortBy {
		case sortByPID:
			return m.records[i].PID < m.records[j].PID
		case sortByProcess:
			return strings.ToLower(m.records[i].Process) < strings.ToLower(m.records[j].Process)
		default:
			return m.records[i].Port < m.records[j].Port
		}
	})
}

func (m *Model) rebuildFiltered() {
	m.filtered = m.filtered[:0]
	query := strings.ToLower(m.searchQuery)
	for i, r := range m.records {
		if query != "" {
			match := strings.Contains(strings.ToLower(r.Process), query) ||
				strings.Contains(strings.ToLower(r.User), query) ||
				strings.Contains(strings.ToLower(r.Command), query) ||
				strings.Contains(fmt.Sprintf("%d", r.Port), query) ||
				strings.Contains(fmt.Sprintf("%d", r.PID), query)
			if !match {
				continue
			}
		}
		m.filtered = append(m.filtered, i)
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
	m.adjustScroll()
}

func (m *Model) ensureCursorVisible() {
	visible := m.visibleRows()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
}

func (m *Model) adjustScroll() {
	visible := m.visibleRows()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
	maxOffset := len(m.filtered) - visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.scrollOffset > maxOffset {
		m.scrollOffset = maxOffset
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m Model) visibleRows() int {
	// Reserve lines for: header (2), column headers (1), separator (1), status bar (2), help (1) = 7.
	const reserved = 7
	visible := m.height - reserved
	if visible < 1 {
		visible = 1
	}
	return visible
}

// View renders the TUI.
func (m Model) View() string {
	switch m.currentView {
	case viewInfo:
		return m.viewInfo()
	case viewKillConfirm:
		return m.viewKillConfirm()
	case viewKillResult:
		return m.viewKillResult()
	case viewFilter:
		return m.viewFilter()
	default:
		return m.viewTable()
	}
}

func (m Model) viewTable() string {
	var b strings.Builder

	// Header bar.
	title := titleStyle.Render(fmt.Sprintf("portward %s", m.version))
	active := 0
	for _, r := range m.records {
		if r.Active {
			active++
		}
	}
	stats := dimStyle.Render(fmt.Sprintf("Listening: %d  Tracked: %d", active, len(m.records)))
	pauseIndicator := ""
	if m.paused {
		pauseIndicator = warnStyle.Render("  [PAUSED]")
	}
	flash := ""
	if m.flash != "" && time.Now().Before(m.flashUntil) {
		flash = warnStyle.Render("  " + m.flash)
	}
	b.WriteString(title + "  " + stats + pauseIndicator + flash + "\n")

	if m.scanning && len(m.records) == 0 {
		b.WriteString("\n" + m.spinner.View() + " Scanning ports...\n")
		return b.String()
	}

	// Column headers.
	sortIndicator := func(field sortField) string {
		if m.sortBy == field {
			return " ^"
		}
		return ""
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf(
		"  %-3s %-7s %-16s %-7s %-16s %-11s %s",
		"FAV",
		"PORT"+sortIndicator(sortByPort),
		"ADDRESS",
		"PID"+sortIndicator(sortByPID),
		"PROCESS"+sortIndicator(sortByProcess),
		"USER",
		"COMMAND",
	)) + "\n")

	if len(m.filtered) == 0 {
		if m.searchQuery != "" {
			b.WriteString("\n  No results matching: " + m.searchQuery + "\n")
		} else {
			b.WriteString("\n  No listening ports found.\n")
		}
	} else {
		viewportRows := m.visibleRows()
		end := m.scrollOffset + viewportRows
		if end > len(m.filtered) {
			end = len(m.filtered)
		}

		store := m.monitor.Store()
		for i := m.scrollOffset; i < end; i++ {
			idx := m.filtered[i]
			r := m.records[idx]

			cursor := "  "
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
			}

			fav := "   "
			if store.IsFavorite(r.Port) {
				fav = favStyle.Render(" * ")
			}

			if !r.Active {
				line := fmt.Sprintf("%-7d %-16s %-7s %-16s %-11s %s",
					r.Port, "-", "-", "(inactive)", "-", "-")
				b.WriteString(cursor + fav + inactiveStyle.Render(line) + "\n")
				continue
			}

			// Truncate command to fit.
			cmd := r.Command
			maxCmdLen := m.width - 70
			if maxCmdLen < 10 {
				maxCmdLen = 10
			}
			if len(cmd) > maxCmdLen {
				cmd = cmd[:maxCmdLen-3] + "..."
			}

			style := processStyle(r.User)
			line := fmt.Sprintf("%-7d %-16s %-7d %-16s %-11s %s",
				r.Port,
				truncate(r.Address, 16),
				r.PID,
				truncate(r.Process, 16),
				truncate(r.User, 11),
				cmd,
			)

			b.WriteString(cursor + fav + style.Render(line) + "\n")
		}

		// Scroll indicator.
		if len(m.filtered) > viewportRows {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  [%d-%d of %d]",
				m.scrollOffset+1, end, len(m.filtered))) + "\n")
		}
	}

	// Search indicator.
	if m.searchQuery != "" {
		b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("  filter: %s", m.searchQuery)))
	}

	// Help bar.
	b.WriteString(helpStyle.Render("j/k:navigate  K:kill  f:favorite  i:info  r:refresh  s:sort  p:pause  /:search  q:quit") + "\n")

	return b.String()
}

func (m Model) viewInfo() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("portward -- Port Info") + "\n\n")

	if m.infoRecord == nil {
		b.WriteString("  No port selected.\n")
		b.WriteString(helpStyle.Render("\nesc back | q quit") + "\n")
		return b.String()
	}

	r := m.infoRecord
	b.WriteString(labelStyle.Render("Port:") + valueStyle.Render(fmt.Sprintf("%d", r.Port)) + "\n")
	b.WriteString(labelStyle.Render("Address:") + valueStyle.Render(r.Address) + "\n")
	b.WriteString(labelStyle.Render("Process:") + valueStyle.Render(fmt.Sprintf("%s (PID %d)", r.Process, r.PID)) + "\n")

	if m.infoErr != nil {
		b.WriteString(labelStyle.Render("User:") + valueStyle.Render(r.User) + "\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("\n  Details unavailable: %v", m.infoErr)) + "\n")
		b.WriteString(helpStyle.Render("\nK:kill  esc:back  q:quit") + "\n")
		return b.String()
	}

	if m.infoData != nil {
		info := m.infoData
		b.WriteString(labelStyle.Render("Command:") + valueStyle.Render(port.TruncateCommand(info.Command)) + "\n")
		b.WriteString(labelStyle.Render("User:") + valueStyle.Render(info.User) + "\n")

		if !info.StartTime.IsZero() {
			ago := time.Since(info.StartTime).Truncate(time.Second)
			b.WriteString(labelStyle.Render("Started:") + valueStyle.Render(
				fmt.Sprintf("%s ago (%s)", formatDuration(ago), info.StartTime.Format("2006-01-02 15:04:05")),
			) + "\n")
		}

		b.WriteString(labelStyle.Render("CPU:") + valueStyle.Render(fmt.Sprintf("%.1f%%", info.CPUPercent)) + "\n")
		b.WriteString(labelStyle.Render("Memory:") + valueStyle.Render(formatBytes(info.MemRSS)+" (RSS)") + "\n")

		if info.PPID > 0 {
			b.WriteString(labelStyle.Render("Parent PID:") + valueStyle.Render(fmt.Sprintf("%d", info.PPID)) + "\n")
		}

		if len(info.Children) > 0 {
			childStrs := make([]string, len(info.Children))
			for i, c := range info.Children {
				childStrs[i] = fmt.Sprintf("%d", c)
			}
			b.WriteString(labelStyle.Render("Children:") + valueStyle.Render(strings.Join(childStrs, ", ")) + "\n")
		}
	} else {
		b.WriteString(labelStyle.Render("User:") + valueStyle.Render(r.User) + "\n")
	}

	b.WriteString(helpStyle.Render("\nK:kill  esc:back  q:quit") + "\n")
	return b.String()
}

func (m Model) viewKillConfirm() string {
	var b strings.Builder

	b.WriteString(dangerStyle.Render(" KILL PROCESS ") + "\n\n")

	if m.killRecord == nil {
		b.WriteString("  No process selected.\n")
		b.WriteString(helpStyle.Render("\nesc cancel | q quit") + "\n")
		return b.String()
	}

	r := m.killRecord
	b.WriteString(fmt.Sprintf("  Kill process %q (PID %d) on port %d?\n\n",
		r.Process, r.PID, r.Port))

	if r.User == "root" || r.User != m.currentUser {
		b.WriteString(warnStyle.Render("  WARNING: This process belongs to user '"+r.User+"'.") + "\n")
		b.WriteString(warnStyle.Render("  You may need elevated privileges to kill it.") + "\n\n")
	}

	b.WriteString("  " + dimStyle.Render("[y] graceful (SIGTERM, then SIGKILL)  [F] SIGKILL only  [n] cancel") + "\n")
	b.WriteString(helpStyle.Render("\ny:terminate  F:force  n/esc:cancel") + "\n")
	return b.String()
}

func (m Model) viewKillResult() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("portward -- Kill Result") + "\n\n")

	if m.killFailed {
		b.WriteString(errorStyle.Render("  "+m.killResult) + "\n")
	} else {
		b.WriteString(successStyle.Render("  "+m.killResult) + "\n")
	}

	b.WriteString(helpStyle.Render("\nenter/esc:back  q:quit") + "\n")
	return b.String()
}

func (m Model) viewFilter() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("portward -- Search") + "\n\n")
	b.WriteString("  Type to filter: " + m.searchQuery + "_\n")
	b.WriteString(helpStyle.Render("\nenter:apply  esc:cancel") + "\n")

	return b.String()
}

// truncate truncates a string to max length, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatDuration renders an elapsed duration in coarse human units.
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

// formatBytes formats bytes into a human-readable string.
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
