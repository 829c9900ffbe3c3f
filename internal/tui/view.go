package tui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

func (m *Model) View() string {
	if m.quitting {
		return "Stopping forwards...\n"
	}

	switch m.state {
	case viewForm:
		return appStyle.Render(m.viewForm())
	case viewPicker:
		return appStyle.Render(m.viewPicker())
	default:
		return appStyle.Render(m.viewSessions())
	}
}

func (m *Model) viewSessions() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("fwdctl "+m.cfg.Version) + "\n\n")
	b.WriteString(m.table.View() + "\n")
	b.WriteString(statusLineStyle.Render(m.statusLine()) + "\n")
	b.WriteString(m.noticesPane())
	if m.showLogs {
		b.WriteString(m.logsPane())
	}
	b.WriteString(m.messageLine())
	b.WriteString("\n" + m.help.View(m.keys))

	return b.String()
}

// statusLine summarizes the registry and the selected session.
func (m *Model) statusLine() string {
	if len(m.sessions) == 0 {
		return "No forwards running. Press n to start one."
	}

	counts := make(map[string]int)
	for _, s := range m.sessions {
		counts[string(s.Status)]++
	}
	parts := []string{fmt.Sprintf("%d forwards", len(m.sessions))}
	for _, status := range []string{"Connected", "Connecting", "Error"} {
		if counts[status] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[status], strings.ToLower(status)))
		}
	}
	line := strings.Join(parts, " | ")

	if sess, ok := m.selectedSession(); ok && !sess.StartedAt.IsZero() {
		line += fmt.Sprintf(" | selected started %s", humanize.Time(sess.StartedAt))
	}
	return line
}

func (m *Model) noticesPane() string {
	if len(m.notices) == 0 {
		return ""
	}

	start := len(m.notices) - noticePaneLines
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, noticePaneLines)
	for _, n := range m.notices[start:] {
		line := m.fitLine(n.String())
		if n.Abnormal {
			line = abnormalStyle.Render(line)
		} else {
			line = noticeStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return paneTitleStyle.Render("Notices") + "\n" + strings.Join(lines, "\n") + "\n"
}

func (m *Model) logsPane() string {
	start := len(m.logs) - maxVisibleLogLines
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, maxVisibleLogLines)
	for _, line := range m.logs[start:] {
		lines = append(lines, logLineStyle.Render(m.fitLine(line)))
	}
	if len(lines) == 0 {
		lines = append(lines, hintStyle.Render("No log entries yet."))
	}
	return paneTitleStyle.Render("Logs") + "\n" + strings.Join(lines, "\n") + "\n"
}

func (m *Model) messageLine() string {
	switch {
	case m.errMsg != "":
		return errorStyle.Render(m.fitLine(m.errMsg)) + "\n"
	case m.statusMsg != "":
		return feedbackStyle.Render(m.fitLine(m.statusMsg)) + "\n"
	default:
		return "\n"
	}
}

// fitLine truncates a line to the terminal width, accounting for wide runes.
func (m *Model) fitLine(line string) string {
	maxWidth := m.width - 4
	if maxWidth < 10 {
		return line
	}
	if runewidth.StringWidth(line) > maxWidth {
		return runewidth.Truncate(line, maxWidth-1, "…")
	}
	return line
}

func (m *Model) viewForm() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("New forward") + "\n\n")
	for i, input := range m.form.inputs {
		b.WriteString(formLabelStyle.Render(formLabels[i]) + input.View() + "\n")
	}
	b.WriteString("\n" + hintStyle.Render("enter: next field | ctrl+s: start | esc: cancel") + "\n")
	b.WriteString(m.messageLine())

	return b.String()
}

func (m *Model) viewPicker() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Declared forwards") + "\n\n")
	for i, def := range m.cfg.Forwards {
		cursor := "  "
		line := fmt.Sprintf("%-20s %s/%s:%d", def.Name, def.Namespace, def.Pod, def.RemotePort)
		if def.LocalPort != 0 {
			line += fmt.Sprintf(" -> %d", def.LocalPort)
		}
		if def.Context != "" {
			line += fmt.Sprintf(" (context %s)", def.Context)
		}
		line = m.fitLine(line)
		if i == m.picker {
			cursor = pickerCursorStyle.Render("> ")
			line = pickerCursorStyle.Render(line)
		}
		b.WriteString(cursor + line + "\n")
	}
	b.WriteString("\n" + hintStyle.Render("enter: start | esc: back") + "\n")
	b.WriteString(m.messageLine())

	return b.String()
}
