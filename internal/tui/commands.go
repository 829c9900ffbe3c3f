package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"fwdctl/internal/forward"
)

// tickCmd schedules the next uptime refresh.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForNotice blocks on the notice subscription and delivers the next
// notice as a message. Update re-arms it after each delivery.
func (m *Model) waitForNotice() tea.Cmd {
	sub := m.cfg.Notices
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-sub.C()
		if !ok {
			return noticesClosedMsg{}
		}
		return noticeMsg(n)
	}
}

// waitForLog blocks on the log channel and delivers the next entry.
func (m *Model) waitForLog() tea.Cmd {
	logs := m.cfg.Logs
	if logs == nil {
		return nil
	}
	return func() tea.Msg {
		entry, ok := <-logs
		if !ok {
			return logsClosedMsg{}
		}
		return logLineMsg(entry)
	}
}

// startForwardCmd runs Start off the UI goroutine; the result comes back as a
// startResultMsg.
func (m *Model) startForwardCmd(target forward.Target, desired int) tea.Cmd {
	controller := m.cfg.Controller
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), startOpTimeout)
		defer cancel()
		res, err := controller.Start(ctx, target, desired)
		return startResultMsg{target: target, result: res, err: err}
	}
}

// stopForwardCmd runs Stop off the UI goroutine.
func (m *Model) stopForwardCmd(id forward.SessionID) tea.Cmd {
	controller := m.cfg.Controller
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), stopOpTimeout)
		defer cancel()
		return stopResultMsg{id: id, err: controller.Stop(ctx, id)}
	}
}

func (m *Model) stopAllCmd() tea.Cmd {
	controller := m.cfg.Controller
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), stopOpTimeout)
		defer cancel()
		return stopAllResultMsg{err: controller.StopAll(ctx)}
	}
}
