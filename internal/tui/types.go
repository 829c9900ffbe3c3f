package tui

import (
	"context"
	"time"

	"fwdctl/internal/config"
	"fwdctl/internal/forward"
	"fwdctl/internal/reporting"
	"fwdctl/pkg/logging"
)

// ForwardController is the slice of the session manager the dashboard drives.
type ForwardController interface {
	Start(ctx context.Context, target forward.Target, desiredPort int) (forward.StartResult, error)
	Stop(ctx context.Context, id forward.SessionID) error
	StopAll(ctx context.Context) error
	Query() []forward.SessionInfo
}

// Config wires the dashboard to the rest of the process.
type Config struct {
	Controller ForwardController
	// Notices feeds the notice pane. May be nil in tests.
	Notices *reporting.Subscription
	// Logs carries channel-mode log entries into the log pane. May be nil.
	Logs <-chan logging.LogEntry
	// Forwards are the config-declared targets offered in the picker.
	Forwards []config.ForwardDefinition
	// BindAddress is the local address shown for forwards, e.g. "127.0.0.1".
	BindAddress string
	Version     string
}

// viewState selects which screen the dashboard renders.
type viewState int

const (
	viewSessions viewState = iota
	viewForm
	viewPicker
)

const (
	refreshInterval = time.Second
	maxNotices      = 50
	maxLogLines     = 200
	noticePaneLines = 5

	// startOpTimeout covers the manager's readiness wait with headroom.
	startOpTimeout = 30 * time.Second
	stopOpTimeout  = 10 * time.Second
)

// tickMsg drives the periodic uptime refresh.
type tickMsg time.Time

// noticeMsg is one forward-lifecycle notice from the bus.
type noticeMsg reporting.Notice

// noticesClosedMsg reports that the notice subscription ended.
type noticesClosedMsg struct{}

// logLineMsg is one log entry from the channel-mode logger.
type logLineMsg logging.LogEntry

// logsClosedMsg reports that the log channel was closed.
type logsClosedMsg struct{}

// startResultMsg carries the outcome of an asynchronous Start call.
type startResultMsg struct {
	target forward.Target
	result forward.StartResult
	err    error
}

// stopResultMsg carries the outcome of an asynchronous Stop call.
type stopResultMsg struct {
	id  forward.SessionID
	err error
}

// stopAllResultMsg carries the outcome of an asynchronous StopAll call.
type stopAllResultMsg struct {
	err error
}
