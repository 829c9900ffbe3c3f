package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration structure for fwdctl.
type Config struct {
	Settings Settings            `yaml:"settings"`
	Forwards []ForwardDefinition `yaml:"forwards"`
}

// Settings holds process-wide knobs.
type Settings struct {
	KubectlPath         string `yaml:"kubectlPath,omitempty"`         // Binary used to spawn forwards (default: "kubectl" from PATH)
	BindAddress         string `yaml:"bindAddress,omitempty"`         // Local address forwards listen on (default: 127.0.0.1)
	ReadyTimeoutSeconds int    `yaml:"readyTimeoutSeconds,omitempty"` // How long to wait for a tunnel to report ready
	Debug               bool   `yaml:"debug,omitempty"`               // Enables debug-level logging
}

// ReadyTimeout converts the configured seconds into a duration. Zero or
// negative values mean "use the built-in default".
func (s Settings) ReadyTimeout() time.Duration {
	if s.ReadyTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.ReadyTimeoutSeconds) * time.Second
}

// ForwardDefinition declares one forward so routine targets don't have to be
// typed every session. Declared forwards never start on their own: the
// dashboard offers them in a picker, and the forward command starts them when
// invoked with no pod argument or with --name.
type ForwardDefinition struct {
	Name       string `yaml:"name"`                // Unique name for this entry, e.g. "staging-api"
	Context    string `yaml:"context,omitempty"`   // Kubeconfig context; empty means the active one
	Namespace  string `yaml:"namespace"`           // Namespace containing the pod
	Pod        string `yaml:"pod"`                 // Pod name to forward to
	RemotePort int    `yaml:"remotePort"`          // Port on the pod
	LocalPort  int    `yaml:"localPort,omitempty"` // Desired local port; 0 mirrors the remote port
}

// Validate reports the first problem that would prevent this definition from
// ever producing a working forward.
func (d ForwardDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("forward definition needs a name")
	}
	if d.Namespace == "" || d.Pod == "" {
		return fmt.Errorf("forward %q needs a namespace and pod", d.Name)
	}
	if d.RemotePort <= 0 || d.RemotePort > 65535 {
		return fmt.Errorf("forward %q has invalid remote port %d", d.Name, d.RemotePort)
	}
	return nil
}
