// Package reporting carries forward-lifecycle notices from the session
// manager to whoever is watching: the TUI notice log, the CLI logger, or a
// test. Notices are the push side of the system; session state itself stays
// pull-only through the manager's query.
package reporting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NoticeType names the lifecycle moment a notice describes.
type NoticeType string

const (
	NoticeForwardConnecting NoticeType = "forward.connecting"
	NoticeForwardConnected  NoticeType = "forward.connected"
	NoticeForwardFailed     NoticeType = "forward.failed"
	NoticeForwardStopped    NoticeType = "forward.stopped"
)

// Notice is one user-facing lifecycle event for a forward session. Fields are
// flat so consumers never reach back into manager-owned state.
type Notice struct {
	ID         string     `json:"id"`
	Type       NoticeType `json:"type"`
	Time       time.Time  `json:"time"`
	SessionID  string     `json:"sessionId"`
	Context    string     `json:"context,omitempty"`
	Namespace  string     `json:"namespace"`
	Pod        string     `json:"pod"`
	RemotePort int        `json:"remotePort"`
	LocalPort  int        `json:"localPort"`

	// Abnormal marks terminations that were not requested by the user:
	// unexpected process exits and pod deletions.
	Abnormal bool   `json:"abnormal,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewNotice stamps a notice with an ID and the current time.
func NewNotice(t NoticeType) Notice {
	return Notice{
		ID:   uuid.NewString(),
		Type: t,
		Time: time.Now(),
	}
}

// String renders a single-line summary suitable for a notice log.
func (n Notice) String() string {
	tag := ""
	if n.Abnormal {
		tag = "abnormal: "
	}
	detail := n.Reason
	if detail == "" {
		detail = n.Error
	}
	if detail != "" {
		detail = fmt.Sprintf(" (%s%s)", tag, detail)
	} else if n.Abnormal {
		detail = " (abnormal)"
	}
	return fmt.Sprintf("%s %s %s/%s :%d -> local %d%s",
		n.Time.Format("15:04:05"), n.Type, n.Namespace, n.Pod, n.RemotePort, n.LocalPort, detail)
}
