package forward

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateForward rejects a start for a target and requested port
	// that already has a live session.
	ErrDuplicateForward = errors.New("an identical forward is already active")

	// ErrProcessNotFound reports a missing kubectl executable.
	ErrProcessNotFound = errors.New("forwarding executable not found in PATH")

	// ErrEstablishTimeout reports a tunnel that produced neither a
	// readiness marker nor an exit within the readiness timeout.
	ErrEstablishTimeout = errors.New("timed out waiting for the tunnel to become ready")

	// ErrStoppedBeforeReady reports a session stopped while still
	// Connecting; the in-flight start observes the teardown and returns
	// this instead of a failure classification.
	ErrStoppedBeforeReady = errors.New("forward stopped before the tunnel became ready")
)

// FailureReason is the advisory classification of why a tunnel failed to
// establish, derived from the process stderr.
type FailureReason string

const (
	ReasonPortConflict     FailureReason = "port conflict"
	ReasonPermissionDenied FailureReason = "permission denied"
	ReasonTargetNotRunning FailureReason = "target not running"
	ReasonUnknown          FailureReason = "unknown"
)

// EstablishError reports a tunnel that exited before becoming ready.
type EstablishError struct {
	Reason FailureReason
	// Output holds the stderr tail of the process, for display.
	Output string
}

func (e *EstablishError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("tunnel failed to establish: %s", e.Reason)
	}
	return fmt.Sprintf("tunnel failed to establish: %s: %s", e.Reason, e.Output)
}

// UnexpectedExitError reports a connected tunnel whose process died without
// a stop request.
type UnexpectedExitError struct {
	Code int
}

func (e *UnexpectedExitError) Error() string {
	return fmt.Sprintf("forward process exited unexpectedly (exit code %d)", e.Code)
}
