package forward

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fwdctl/internal/portalloc"
	"fwdctl/internal/reporting"
	"fwdctl/pkg/logging"
)

const logSubsystem = "Forward"

const (
	// DefaultReadyTimeout bounds how long a start waits for the readiness
	// marker before tearing the process down.
	DefaultReadyTimeout = 10 * time.Second

	// stopGrace bounds internally-initiated teardowns (timeouts, pod
	// removals) before escalating to SIGKILL.
	stopGrace = 5 * time.Second
)

// tunnel is the manager's view of one forwarding process. The real
// implementation is Process; tests substitute their own.
type tunnel interface {
	Established() <-chan struct{}
	Done() <-chan struct{}
	ExitStatus() ExitStatus
	Stop(ctx context.Context) error
	String() string
}

type startTunnelFunc func(Command) (tunnel, error)

// Options tunes a Manager. Zero values fall back to defaults.
type Options struct {
	ReadyTimeout time.Duration
	KubectlPath  string
	// BindAddress is passed to kubectl --address when set; it also scopes
	// the OS port probe.
	BindAddress string
}

// StartResult is returned by a successful Start: the session snapshot plus
// the port allocation outcome, which callers surface when the port was
// adjusted.
type StartResult struct {
	Session SessionInfo
	Port    portalloc.Result
}

type session struct {
	info SessionInfo
	// proc is attached once the spawn returns; a session may briefly sit
	// in the registry without one.
	proc tunnel
}

// Manager is the authoritative registry of forward sessions. All mutation
// goes through it; reads are snapshots. A Manager is constructed where the
// application is wired together and shut down with StopAll.
type Manager struct {
	mu       sync.Mutex
	sessions map[SessionID]*session

	opts Options
	bus  reporting.Publisher

	startTunnel startTunnelFunc
	osProbe     portalloc.ProbeFunc
}

// NewManager creates an empty registry. bus may be nil when nothing consumes
// notices (tests, one-shot commands).
func NewManager(opts Options, bus reporting.Publisher) *Manager {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.KubectlPath == "" {
		opts.KubectlPath = defaultKubectlPath
	}
	return &Manager{
		sessions:    make(map[SessionID]*session),
		opts:        opts,
		bus:         bus,
		startTunnel: func(c Command) (tunnel, error) { return startProcess(c) },
		osProbe:     portalloc.BindProbe(opts.BindAddress),
	}
}

// Start resolves a local port, registers a Connecting session, spawns the
// forwarding process, and blocks until the tunnel is ready, fails, or times
// out. A desiredPort of 0 defaults to the remote port. The caller is
// responsible for having validated the target pod; Start never queries
// cluster state.
func (m *Manager) Start(ctx context.Context, target Target, desiredPort int) (StartResult, error) {
	if target.Pod == "" || target.Namespace == "" {
		return StartResult{}, fmt.Errorf("forward target needs a namespace and pod name, got %q", target)
	}
	if desiredPort == 0 {
		desiredPort = target.RemotePort
	}

	// Port decision and registry insertion are one critical section so
	// concurrent starts can never claim the same port.
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.info.Target == target && s.info.RequestedPort == desiredPort {
			m.mu.Unlock()
			return StartResult{}, fmt.Errorf("%w: %s requested port %d", ErrDuplicateForward, target, desiredPort)
		}
	}
	res, err := portalloc.Resolve(desiredPort, func(port int) bool {
		return !m.portClaimedLocked(port) && m.osProbe(port)
	})
	if err != nil {
		m.mu.Unlock()
		return StartResult{}, err
	}
	id := sessionID(target, res.Port)
	sess := &session{info: SessionInfo{
		ID:            id,
		Target:        target,
		LocalPort:     res.Port,
		RequestedPort: desiredPort,
		Status:        StatusConnecting,
	}}
	m.sessions[id] = sess
	m.mu.Unlock()

	logging.Info(logSubsystem, "Starting forward %s on local port %d", target, res.Port)
	m.publish(reporting.NoticeForwardConnecting, sess.info, false, "", nil)

	tun, err := m.startTunnel(Command{
		KubectlPath: m.opts.KubectlPath,
		Target:      target,
		LocalPort:   res.Port,
		BindAddress: m.opts.BindAddress,
	})
	if err != nil {
		m.remove(id)
		logging.Error(logSubsystem, err, "Spawn failed for %s", target)
		m.publish(reporting.NoticeForwardFailed, sess.info, false, "spawn failed", err)
		return StartResult{}, err
	}

	m.mu.Lock()
	if _, live := m.sessions[id]; !live {
		// Stopped (or pod-removed) while the process was being spawned.
		// Whoever removed the entry could not see the process yet, so the
		// teardown happens here.
		m.mu.Unlock()
		m.teardown(tun)
		return StartResult{}, ErrStoppedBeforeReady
	}
	sess.proc = tun
	m.mu.Unlock()

	timer := time.NewTimer(m.opts.ReadyTimeout)
	defer timer.Stop()

	select {
	case <-tun.Established():
		m.mu.Lock()
		if _, live := m.sessions[id]; !live {
			m.mu.Unlock()
			return StartResult{}, ErrStoppedBeforeReady
		}
		sess.info.Status = StatusConnected
		sess.info.StartedAt = time.Now()
		snap := sess.info
		m.mu.Unlock()

		go m.watchSession(sess)
		logging.Info(logSubsystem, "Forward %s connected on local port %d", target, res.Port)
		m.publish(reporting.NoticeForwardConnected, snap, false, res.Reason, nil)
		return StartResult{Session: snap, Port: res}, nil

	case <-tun.Done():
		st := tun.ExitStatus()
		m.remove(id)
		if st.Planned {
			return StartResult{}, ErrStoppedBeforeReady
		}
		estErr := &EstablishError{Reason: st.Reason, Output: st.Output}
		logging.Error(logSubsystem, estErr, "Forward %s failed before ready", target)
		m.publish(reporting.NoticeForwardFailed, sess.info, false, string(st.Reason), estErr)
		return StartResult{}, estErr

	case <-timer.C:
		m.remove(id)
		m.teardown(tun)
		logging.Error(logSubsystem, ErrEstablishTimeout, "Forward %s on local port %d", target, res.Port)
		m.publish(reporting.NoticeForwardFailed, sess.info, false, "readiness timeout", ErrEstablishTimeout)
		return StartResult{}, ErrEstablishTimeout

	case <-ctx.Done():
		m.remove(id)
		m.teardown(tun)
		return StartResult{}, fmt.Errorf("forward start aborted: %w", ctx.Err())
	}
}

// Stop removes the session from the registry, then terminates its process.
// Unknown ids and already-exited processes both succeed, so Stop is safe to
// repeat.
func (m *Manager) Stop(ctx context.Context, id SessionID) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	// Removal happens before the process teardown so concurrent readers
	// never observe a half-stopped entry.
	delete(m.sessions, id)
	tun := sess.proc
	snap := sess.info
	m.mu.Unlock()

	logging.Info(logSubsystem, "Stopping forward %s on local port %d", snap.Target, snap.LocalPort)

	if tun == nil {
		// Still spawning; the starter observes the removal and tears the
		// process down itself.
		m.publish(reporting.NoticeForwardStopped, snap, false, "requested", nil)
		return nil
	}

	err := tun.Stop(ctx)
	m.publish(reporting.NoticeForwardStopped, snap, false, "requested", err)
	if err != nil {
		return fmt.Errorf("stopping forward %s: %w", snap.Target, err)
	}
	return nil
}

// StopAll stops every session, tolerating individual failures. Used on every
// shutdown path; afterwards the registry is empty and no spawned process
// remains.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]SessionID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	logging.Info(logSubsystem, "Stopping all forwards (%d active)", len(ids))

	var wg sync.WaitGroup
	errCh := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id SessionID) {
			defer wg.Done()
			if err := m.Stop(ctx, id); err != nil {
				errCh <- err
			}
		}(id)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Query snapshots every live session, sorted by namespace, pod, then local
// port. Pure read: no cluster calls, no timers; uptime is derived from the
// snapshot's StartedAt by the caller.
func (m *Manager) Query() []SessionInfo {
	m.mu.Lock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Target.Namespace != b.Target.Namespace {
			return a.Target.Namespace < b.Target.Namespace
		}
		if a.Target.Pod != b.Target.Pod {
			return a.Target.Pod < b.Target.Pod
		}
		return a.LocalPort < b.LocalPort
	})
	return out
}

// Get returns the snapshot of one session.
func (m *Manager) Get(id SessionID) (SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s.info, true
	}
	return SessionInfo{}, false
}

// OnPodRemoved stops every session targeting the deleted pod and reports the
// terminations as abnormal. Wired to the pod lifecycle watcher.
func (m *Manager) OnPodRemoved(contextName, namespace, pod string) {
	type victim struct {
		info SessionInfo
		proc tunnel
	}

	// Snapshots are taken under the lock; an in-flight Start may still be
	// reading the shared record after it observes the removal.
	m.mu.Lock()
	var victims []victim
	for id, s := range m.sessions {
		t := s.info.Target
		if t.Context == contextName && t.Namespace == namespace && t.Pod == pod {
			delete(m.sessions, id)
			info := s.info
			info.Status = StatusError
			info.LastError = "pod deleted"
			victims = append(victims, victim{info: info, proc: s.proc})
		}
	}
	m.mu.Unlock()

	for _, v := range victims {
		logging.Warn(logSubsystem, "Pod %s/%s deleted, stopping forward on local port %d", namespace, pod, v.info.LocalPort)
		if v.proc != nil {
			m.teardown(v.proc)
		}
		m.publish(reporting.NoticeForwardStopped, v.info, true, "pod deleted", nil)
	}
}

// watchSession waits on a connected session's process and handles an exit
// nobody asked for: the entry is dropped (freeing its local port) and an
// abnormal notice goes out.
func (m *Manager) watchSession(sess *session) {
	tun := sess.proc
	<-tun.Done()
	st := tun.ExitStatus()
	if st.Planned {
		// The stop path already did the bookkeeping.
		return
	}

	m.mu.Lock()
	cur, ok := m.sessions[sess.info.ID]
	if !ok || cur != sess {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sess.info.ID)
	exitErr := &UnexpectedExitError{Code: st.Code}
	sess.info.Status = StatusError
	sess.info.LastError = exitErr.Error()
	snap := sess.info
	m.mu.Unlock()

	logging.Warn(logSubsystem, "Forward %s exited unexpectedly (code %d)", snap.Target, st.Code)
	m.publish(reporting.NoticeForwardFailed, snap, true, "unexpected exit", exitErr)
}

// portClaimedLocked reports whether a live session holds the port. Callers
// hold m.mu.
func (m *Manager) portClaimedLocked(port int) bool {
	for _, s := range m.sessions {
		if s.info.LocalPort == port {
			return true
		}
	}
	return false
}

func (m *Manager) remove(id SessionID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// teardown stops a process that no registered session owns anymore.
func (m *Manager) teardown(tun tunnel) {
	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	if err := tun.Stop(ctx); err != nil {
		logging.Warn(logSubsystem, "Teardown of %s reported: %v", tun, err)
	}
}

func (m *Manager) publish(t reporting.NoticeType, info SessionInfo, abnormal bool, reason string, err error) {
	if m.bus == nil {
		return
	}
	n := reporting.NewNotice(t)
	n.SessionID = string(info.ID)
	n.Context = info.Target.Context
	n.Namespace = info.Target.Namespace
	n.Pod = info.Target.Pod
	n.RemotePort = info.Target.RemotePort
	n.LocalPort = info.LocalPort
	n.Abnormal = abnormal
	n.Reason = reason
	if err != nil {
		n.Error = err.Error()
	}
	m.bus.Publish(n)
}
