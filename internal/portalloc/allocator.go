// Package portalloc resolves the local port a new forward should bind,
// keeping the decision logic free of registry and process concerns. Callers
// supply the probe; the allocator only decides.
package portalloc

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	// MinPort is the lowest local port a forward may bind. Ports below it
	// are privileged and rejected by policy, not by the OS.
	MinPort = 1024
	// MaxPort is the highest valid TCP port.
	MaxPort = 65535

	// scanWindow bounds how many ports above the desired one are probed
	// before giving up.
	scanWindow = 20
)

var (
	// ErrInvalidPortRange reports a desired port outside [MinPort, MaxPort].
	ErrInvalidPortRange = errors.New("local port outside the allowed range")
	// ErrNoPortAvailable reports an exhausted scan window.
	ErrNoPortAvailable = errors.New("no free local port in the scan window")
)

// ProbeFunc reports whether a local port is free to bind. Implementations
// must consult every claim source that matters to the caller (live registry,
// OS bind probe).
type ProbeFunc func(port int) bool

// Result describes the port chosen for one start call. It is returned once
// and never persisted.
type Result struct {
	Port        int
	WasAdjusted bool
	Reason      string
}

// Resolve picks the local port for a forward. The desired port is returned
// unchanged when free; otherwise the next ports up to desired+20 are probed
// in order and the first free one wins. Candidates above MaxPort are never
// probed.
func Resolve(desired int, isFree ProbeFunc) (Result, error) {
	if desired < MinPort || desired > MaxPort {
		return Result{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidPortRange, desired, MinPort, MaxPort)
	}

	if isFree(desired) {
		return Result{Port: desired}, nil
	}

	for offset := 1; offset <= scanWindow; offset++ {
		candidate := desired + offset
		if candidate > MaxPort {
			break
		}
		if isFree(candidate) {
			return Result{
				Port:        candidate,
				WasAdjusted: true,
				Reason:      fmt.Sprintf("port %d is busy, using %d instead", desired, candidate),
			}, nil
		}
	}

	last := desired + scanWindow
	if last > MaxPort {
		last = MaxPort
	}
	return Result{}, fmt.Errorf("%w: tried %d through %d", ErrNoPortAvailable, desired, last)
}

// BindProbe returns a ProbeFunc that asks the OS whether a port can be bound
// on the given host. An empty host defaults to the loopback address kubectl
// binds by default.
func BindProbe(host string) ProbeFunc {
	if host == "" {
		host = "127.0.0.1"
	}
	return func(port int) bool {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			return false
		}
		l.Close()
		return true
	}
}
