package forward

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"

	"fwdctl/pkg/logging"
)

const procSubsystem = "ForwardProc"

const (
	defaultKubectlPath = "kubectl"

	// readinessMarker is the stdout line prefix kubectl prints once the
	// tunnel listener is up.
	readinessMarker = "Forwarding from"

	// stderrTailLimit bounds how many stderr lines are kept for failure
	// classification and error messages.
	stderrTailLimit = 8

	// killWait is how long Stop waits after SIGKILL before giving up on
	// observing the exit.
	killWait = 2 * time.Second
)

// Command describes one kubectl port-forward invocation.
type Command struct {
	KubectlPath string
	Target      Target
	LocalPort   int
	BindAddress string
}

func (c Command) binary() string {
	if c.KubectlPath == "" {
		return defaultKubectlPath
	}
	return c.KubectlPath
}

func (c Command) args() []string {
	args := []string{"port-forward"}
	if c.Target.Context != "" {
		args = append(args, "--context", c.Target.Context)
	}
	if c.Target.Namespace != "" {
		args = append(args, "--namespace", c.Target.Namespace)
	}
	if c.BindAddress != "" {
		args = append(args, "--address", c.BindAddress)
	}
	args = append(args,
		"pod/"+c.Target.Pod,
		fmt.Sprintf("%d:%d", c.LocalPort, c.Target.RemotePort),
	)
	return args
}

// String renders the full command line, quoted for copy-paste.
func (c Command) String() string {
	return shellquote.Join(append([]string{c.binary()}, c.args()...)...)
}

// ExitStatus describes how a forwarding process ended.
type ExitStatus struct {
	Code int
	// Planned is set when the exit followed a Stop call.
	Planned bool
	// Reason is the advisory failure classification from stderr; only
	// meaningful when the process never became ready.
	Reason FailureReason
	// Output is the retained stderr tail.
	Output string
}

// Process supervises one spawned kubectl port-forward. Readiness and exit
// are exposed as two one-shot channels so any number of observers can wait
// without stealing each other's signal.
type Process struct {
	cmd  *exec.Cmd
	desc string

	established chan struct{}
	estOnce     sync.Once

	done   chan struct{}
	status ExitStatus

	planned  atomic.Bool
	stopOnce sync.Once

	scanners sync.WaitGroup

	mu         sync.Mutex
	stderrTail []string
}

// startProcess spawns the command and begins observing it. The returned
// Process is already running; callers select on Established and Done.
func startProcess(spec Command) (*Process, error) {
	path, err := exec.LookPath(spec.binary())
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrProcessNotFound, spec.binary())
	}

	cmd := exec.Command(path, spec.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	p := &Process{
		cmd:         cmd,
		desc:        spec.String(),
		established: make(chan struct{}),
		done:        make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", p.desc, err)
	}
	logging.Debug(procSubsystem, "Spawned pid %d: %s", cmd.Process.Pid, p.desc)

	p.scanners.Add(2)
	go p.scanStdout(stdout)
	go p.scanStderr(stderr)
	go p.wait()

	return p, nil
}

func (p *Process) scanStdout(r io.Reader) {
	defer p.scanners.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		logging.Debug(procSubsystem, "stdout: %s", line)
		if strings.Contains(line, readinessMarker) {
			p.estOnce.Do(func() { close(p.established) })
		}
	}
}

func (p *Process) scanStderr(r io.Reader) {
	defer p.scanners.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logging.Debug(procSubsystem, "stderr: %s", line)
		p.mu.Lock()
		p.stderrTail = append(p.stderrTail, line)
		if len(p.stderrTail) > stderrTailLimit {
			p.stderrTail = p.stderrTail[1:]
		}
		p.mu.Unlock()
	}
}

// wait reaps the process after the pipes have drained and publishes the exit.
func (p *Process) wait() {
	p.scanners.Wait()
	err := p.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	p.mu.Lock()
	tail := strings.Join(p.stderrTail, "\n")
	p.mu.Unlock()

	p.status = ExitStatus{
		Code:    code,
		Planned: p.planned.Load(),
		Reason:  classifyOutput(tail),
		Output:  tail,
	}
	close(p.done)
	logging.Debug(procSubsystem, "Exited code=%d planned=%t: %s", code, p.status.Planned, p.desc)
}

// Established is closed once when the readiness marker appears on stdout.
func (p *Process) Established() <-chan struct{} {
	return p.established
}

// Done is closed when the process has exited and its status is readable.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitStatus returns how the process ended. Only valid once Done is closed;
// before that it returns the zero value.
func (p *Process) ExitStatus() ExitStatus {
	select {
	case <-p.done:
		return p.status
	default:
		return ExitStatus{}
	}
}

// String returns the rendered command line.
func (p *Process) String() string {
	return p.desc
}

// Stop requests termination and waits for the exit. It is idempotent and
// succeeds when the process has already exited. The context bounds the
// graceful phase; once it expires the process is killed outright.
func (p *Process) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { p.terminate(ctx) })
	select {
	case <-p.done:
		return nil
	default:
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for forward process to exit: %w", ctx.Err())
	}
}

func (p *Process) terminate(ctx context.Context) {
	// The flag must be up before any signal so the exit is not reported
	// as unexpected.
	p.planned.Store(true)

	select {
	case <-p.done:
		return
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = p.cmd.Process.Kill()
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		_ = p.cmd.Process.Kill()
		select {
		case <-p.done:
		case <-time.After(killWait):
			logging.Warn(procSubsystem, "Process did not exit after kill: %s", p.desc)
		}
	}
}

// classifyOutput maps stderr text onto a failure reason. Advisory only; the
// manager decides what to surface.
func classifyOutput(output string) FailureReason {
	text := strings.ToLower(output)
	switch {
	case strings.Contains(text, "address already in use"),
		strings.Contains(text, "unable to create listener"),
		strings.Contains(text, "unable to listen on"):
		return ReasonPortConflict
	case strings.Contains(text, "permission denied"),
		strings.Contains(text, "forbidden"),
		strings.Contains(text, "unauthorized"):
		return ReasonPermissionDenied
	case strings.Contains(text, "not found"),
		strings.Contains(text, "is not running"),
		strings.Contains(text, "container not running"):
		return ReasonTargetNotRunning
	default:
		return ReasonUnknown
	}
}
