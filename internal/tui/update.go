package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"fwdctl/internal/forward"
	"fwdctl/internal/reporting"
	"fwdctl/pkg/logging"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tickMsg:
		m.refreshSessions()
		return m, tickCmd()

	case noticeMsg:
		m.recordNotice(reporting.Notice(msg))
		m.refreshSessions()
		return m, m.waitForNotice()

	case noticesClosedMsg:
		return m, nil

	case logLineMsg:
		m.recordLog(logging.LogEntry(msg))
		return m, m.waitForLog()

	case logsClosedMsg:
		return m, nil

	case startResultMsg:
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("%s: %v", msg.target, msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("Forwarding %s:%d -> %s",
				m.cfg.BindAddress, msg.result.Session.LocalPort, msg.target)
			if msg.result.Port.WasAdjusted {
				m.statusMsg += fmt.Sprintf(" (%s)", msg.result.Port.Reason)
			}
		}
		m.refreshSessions()
		return m, nil

	case stopResultMsg:
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("Stop failed: %v", msg.err)
		} else {
			m.statusMsg = "Forward stopped."
		}
		m.refreshSessions()
		return m, nil

	case stopAllResultMsg:
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("Stop all failed: %v", msg.err)
		} else {
			m.statusMsg = "All forwards stopped."
		}
		m.refreshSessions()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// ctrl+c quits from any screen.
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.state {
	case viewForm:
		return m.updateForm(msg)
	case viewPicker:
		return m.updatePicker(msg)
	default:
		return m.updateSessions(msg)
	}
}

func (m *Model) updateSessions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.NewForward):
		m.clearMessages()
		m.form = newForwardForm()
		m.state = viewForm
		return m, textinput.Blink

	case key.Matches(msg, m.keys.FromConfig):
		m.clearMessages()
		if len(m.cfg.Forwards) == 0 {
			m.statusMsg = "No forwards declared in the config file."
			return m, nil
		}
		m.picker = 0
		m.state = viewPicker
		return m, nil

	case key.Matches(msg, m.keys.StopSelected):
		m.clearMessages()
		sess, ok := m.selectedSession()
		if !ok {
			m.errMsg = "No session selected."
			return m, nil
		}
		m.statusMsg = fmt.Sprintf("Stopping %s...", sess.Target)
		return m, m.stopForwardCmd(sess.ID)

	case key.Matches(msg, m.keys.StopAll):
		m.clearMessages()
		if len(m.sessions) == 0 {
			m.statusMsg = "No forwards running."
			return m, nil
		}
		m.statusMsg = fmt.Sprintf("Stopping %d forwards...", len(m.sessions))
		return m, m.stopAllCmd()

	case key.Matches(msg, m.keys.CopyAddress):
		m.clearMessages()
		sess, ok := m.selectedSession()
		if !ok {
			m.errMsg = "No session selected."
			return m, nil
		}
		addr := fmt.Sprintf("%s:%d", m.cfg.BindAddress, sess.LocalPort)
		if err := clipboard.WriteAll(addr); err != nil {
			m.errMsg = fmt.Sprintf("Could not copy to clipboard: %v", err)
		} else {
			m.statusMsg = fmt.Sprintf("Copied %s to clipboard.", addr)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyLogs):
		m.clearMessages()
		if err := clipboard.WriteAll(strings.Join(m.logs, "\n")); err != nil {
			m.errMsg = fmt.Sprintf("Could not copy logs: %v", err)
		} else {
			m.statusMsg = fmt.Sprintf("Copied %d log lines to clipboard.", len(m.logs))
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleLogs):
		m.showLogs = !m.showLogs
		m.resize()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = viewSessions
		return m, nil
	case "enter":
		if m.form.onLastField() {
			return m.submitForm()
		}
		m.form.next()
		return m, textinput.Blink
	case "ctrl+s":
		return m.submitForm()
	case "tab", "down":
		m.form.next()
		return m, textinput.Blink
	case "shift+tab", "up":
		m.form.prev()
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.form.inputs[m.form.focused], cmd = m.form.inputs[m.form.focused].Update(msg)
	return m, cmd
}

func (m *Model) submitForm() (tea.Model, tea.Cmd) {
	target, desired, err := m.form.request()
	if err != nil {
		m.errMsg = err.Error()
		return m, nil
	}
	m.state = viewSessions
	m.clearMessages()
	m.statusMsg = fmt.Sprintf("Starting forward to %s...", target)
	return m, m.startForwardCmd(target, desired)
}

func (m *Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = viewSessions
		return m, nil
	case "up", "k":
		if m.picker > 0 {
			m.picker--
		}
		return m, nil
	case "down", "j":
		if m.picker < len(m.cfg.Forwards)-1 {
			m.picker++
		}
		return m, nil
	case "enter":
		def := m.cfg.Forwards[m.picker]
		m.state = viewSessions
		m.clearMessages()
		m.statusMsg = fmt.Sprintf("Starting %q...", def.Name)
		target := forward.Target{
			Context:    def.Context,
			Namespace:  def.Namespace,
			Pod:        def.Pod,
			RemotePort: def.RemotePort,
		}
		return m, m.startForwardCmd(target, def.LocalPort)
	}
	return m, nil
}
