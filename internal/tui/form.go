package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"

	"fwdctl/internal/forward"
)

// Form field order matches the rendered layout.
const (
	formFieldContext = iota
	formFieldNamespace
	formFieldPod
	formFieldRemote
	formFieldLocal
	formFieldCount
)

var formLabels = [formFieldCount]string{
	formFieldContext:   "Context",
	formFieldNamespace: "Namespace",
	formFieldPod:       "Pod",
	formFieldRemote:    "Remote port",
	formFieldLocal:     "Local port",
}

// forwardForm collects the fields of a new forward target.
type forwardForm struct {
	inputs  []textinput.Model
	focused int
}

func newForwardForm() forwardForm {
	inputs := make([]textinput.Model, formFieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 253
		ti.Width = 32
		inputs[i] = ti
	}
	inputs[formFieldContext].Placeholder = "active context"
	inputs[formFieldNamespace].Placeholder = "default"
	inputs[formFieldPod].Placeholder = "pod name (required)"
	inputs[formFieldRemote].Placeholder = "required"
	inputs[formFieldLocal].Placeholder = "same as remote"

	f := forwardForm{inputs: inputs}
	f.inputs[f.focused].Focus()
	return f
}

func (f *forwardForm) next() {
	f.inputs[f.focused].Blur()
	f.focused = (f.focused + 1) % formFieldCount
	f.inputs[f.focused].Focus()
}

func (f *forwardForm) prev() {
	f.inputs[f.focused].Blur()
	f.focused = (f.focused - 1 + formFieldCount) % formFieldCount
	f.inputs[f.focused].Focus()
}

func (f *forwardForm) onLastField() bool {
	return f.focused == formFieldCount-1
}

// request validates the form and builds the start parameters. An empty local
// port is returned as zero so the manager mirrors the remote port.
func (f *forwardForm) request() (forward.Target, int, error) {
	pod := strings.TrimSpace(f.inputs[formFieldPod].Value())
	if pod == "" {
		return forward.Target{}, 0, fmt.Errorf("pod name is required")
	}

	remote, err := parseFormPort(f.inputs[formFieldRemote].Value())
	if err != nil {
		return forward.Target{}, 0, fmt.Errorf("remote port: %v", err)
	}
	if remote == 0 {
		return forward.Target{}, 0, fmt.Errorf("remote port is required")
	}

	desired, err := parseFormPort(f.inputs[formFieldLocal].Value())
	if err != nil {
		return forward.Target{}, 0, fmt.Errorf("local port: %v", err)
	}

	namespace := strings.TrimSpace(f.inputs[formFieldNamespace].Value())
	if namespace == "" {
		namespace = "default"
	}

	target := forward.Target{
		Context:    strings.TrimSpace(f.inputs[formFieldContext].Value()),
		Namespace:  namespace,
		Pod:        pod,
		RemotePort: remote,
	}
	return target, desired, nil
}

// parseFormPort maps an empty string to zero and rejects values outside the
// port range.
func parseFormPort(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%d is out of range", port)
	}
	return port, nil
}
