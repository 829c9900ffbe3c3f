package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"fwdctl/internal/forward"
	"fwdctl/internal/reporting"
	"fwdctl/pkg/logging"
)

// Model is the dashboard's bubbletea model. All mutation happens in Update;
// forwards themselves live in the session manager and are only queried here.
type Model struct {
	cfg  Config
	keys keyMap
	help help.Model

	state viewState

	table    table.Model
	sessions []forward.SessionInfo

	form   forwardForm
	picker int

	notices  []reporting.Notice
	logs     []string
	showLogs bool

	statusMsg string
	errMsg    string

	width  int
	height int

	quitting bool
}

// NewModel builds the dashboard around an already-running session manager.
func NewModel(cfg Config) *Model {
	m := &Model{
		cfg:    cfg,
		keys:   defaultKeyMap(),
		help:   help.New(),
		state:  viewSessions,
		width:  80,
		height: 24,
	}

	m.table = table.New(
		table.WithColumns(m.tableColumns()),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithStyles(tableStyles()),
	)
	m.refreshSessions()
	return m
}

// Init starts the periodic refresh and the channel listeners.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.waitForNotice(), m.waitForLog())
}

// refreshSessions re-queries the manager and rebuilds the table rows. Uptime
// is derived from the snapshot at render time, so rows change between ticks
// without any session mutating.
func (m *Model) refreshSessions() {
	m.sessions = m.cfg.Controller.Query()
	now := time.Now()
	rows := make([]table.Row, 0, len(m.sessions))
	for _, s := range m.sessions {
		rows = append(rows, table.Row{
			s.Target.Context,
			s.Target.Namespace,
			s.Target.Pod,
			strconv.Itoa(s.Target.RemotePort),
			strconv.Itoa(s.LocalPort),
			string(s.Status),
			formatUptime(s.Uptime(now)),
		})
	}
	m.table.SetRows(rows)
	if cursor := m.table.Cursor(); cursor >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// selectedSession returns the session under the table cursor.
func (m *Model) selectedSession() (forward.SessionInfo, bool) {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.sessions) {
		return forward.SessionInfo{}, false
	}
	return m.sessions[cursor], true
}

func (m *Model) recordNotice(n reporting.Notice) {
	m.notices = append(m.notices, n)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m *Model) recordLog(entry logging.LogEntry) {
	line := fmt.Sprintf("[%s] %s: %s",
		entry.Timestamp.Format("15:04:05"),
		entry.Subsystem,
		entry.Message,
	)
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func (m *Model) clearMessages() {
	m.statusMsg = ""
	m.errMsg = ""
}

// resize recomputes the table dimensions for the current terminal size.
func (m *Model) resize() {
	m.help.Width = m.width

	overhead := 10 + noticePaneLines
	if m.showLogs {
		overhead += maxVisibleLogLines + 2
	}
	height := m.height - overhead
	if height < 4 {
		height = 4
	}
	m.table.SetHeight(height)
	m.table.SetColumns(m.tableColumns())
}

// maxVisibleLogLines bounds the log pane so the table keeps most of the
// screen.
const maxVisibleLogLines = 8

// tableColumns distributes the width over the columns, giving the name-like
// columns whatever the fixed ones leave over.
func (m *Model) tableColumns() []table.Column {
	width := m.width
	if width < 80 {
		width = 80
	}

	const remoteW, localW, statusW, uptimeW = 6, 6, 10, 8
	flexible := width - remoteW - localW - statusW - uptimeW - 12
	contextW := flexible * 25 / 100
	namespaceW := flexible * 30 / 100
	podW := flexible - contextW - namespaceW

	return []table.Column{
		{Title: "CONTEXT", Width: contextW},
		{Title: "NAMESPACE", Width: namespaceW},
		{Title: "POD", Width: podW},
		{Title: "REMOTE", Width: remoteW},
		{Title: "LOCAL", Width: localW},
		{Title: "STATUS", Width: statusW},
		{Title: "UPTIME", Width: uptimeW},
	}
}

// formatUptime renders a duration for the uptime column. Sessions that never
// became ready show a dash.
func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	d = d.Round(time.Second)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
