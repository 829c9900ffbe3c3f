// Package forward owns the port-forward sessions of the application: one
// authoritative in-memory registry, the kubectl processes backing each
// session, and the typed failures either can produce. Presentation layers
// pull snapshots through Query and push commands through Start/Stop; nothing
// in here refreshes itself on a timer.
package forward

import (
	"fmt"
	"time"
)

// Target identifies what a session forwards to. Immutable once a session
// has been started for it.
type Target struct {
	Context    string
	Namespace  string
	Pod        string
	RemotePort int
}

// String renders the target for logs and error messages.
func (t Target) String() string {
	if t.Context == "" {
		return fmt.Sprintf("%s/%s:%d", t.Namespace, t.Pod, t.RemotePort)
	}
	return fmt.Sprintf("%s/%s:%d (context %s)", t.Namespace, t.Pod, t.RemotePort, t.Context)
}

// SessionID is the deterministic composite identity of a session. Two live
// sessions can never share one.
type SessionID string

func sessionID(t Target, localPort int) SessionID {
	return SessionID(fmt.Sprintf("%s|%s|%s|%d|%d", t.Context, t.Namespace, t.Pod, t.RemotePort, localPort))
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusConnecting Status = "Connecting"
	StatusConnected  Status = "Connected"
	StatusError      Status = "Error"
)

// SessionInfo is the immutable snapshot of one session handed out by Query
// and carried in start results and notices.
type SessionInfo struct {
	ID     SessionID
	Target Target

	// LocalPort is the port actually bound; RequestedPort is what the
	// caller asked for before any adjustment.
	LocalPort     int
	RequestedPort int

	Status Status

	// StartedAt is set the moment the tunnel is judged connected, not at
	// spawn time. Zero while Connecting.
	StartedAt time.Time

	LastError string
}

// Uptime derives how long the session has been connected at the given time.
// Zero for sessions that never connected.
func (s SessionInfo) Uptime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
