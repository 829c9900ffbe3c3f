package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fwdctl/internal/config"
	"fwdctl/internal/forward"
	"fwdctl/internal/kube"
	"fwdctl/internal/reporting"
	"fwdctl/pkg/logging"
)

const cliSubsystem = "CLI"

// stopTimeout bounds how long shutdown waits for kubectl processes to exit.
const stopTimeout = 10 * time.Second

var forwardNamespace string // --namespace flag
var forwardContext string   // --context flag
var forwardName string      // --name flag
var forwardDebug bool       // --debug flag

// newKubeClient builds the client used for the pod preflight check. It is a
// variable so tests can substitute a fake clientset.
var newKubeClient = kube.NewClient

// forwardRequest is one forward the command should start.
type forwardRequest struct {
	target  forward.Target
	desired int
}

func newForwardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forward [pod/]NAME [LOCAL:]REMOTE [[LOCAL:]REMOTE ...]",
		Short: "Forward local ports to a pod and keep them open",
		Long: `Starts one kubectl port-forward session per port mapping and keeps them
open until interrupted.

Port mappings follow kubectl's syntax: "8080:80" forwards local port 8080 to
the pod's port 80, and a bare "8080" uses the same number on both ends. When
the desired local port is taken, the next free port (up to 20 above) is used
instead and the adjustment is reported.

With no arguments, every forward declared in the configuration file is
started instead; --name picks a single declared forward.

Examples:
  fwdctl forward nginx 8080:80
  fwdctl forward pod/api -n staging 9090:8080 5432
  fwdctl forward --context prod redis 6379
  fwdctl forward --name postgres
  fwdctl forward`,
		Args: cobra.ArbitraryArgs,
		RunE: runForward,
	}
	cmd.Flags().StringVarP(&forwardNamespace, "namespace", "n", "default", "Namespace of the target pod")
	cmd.Flags().StringVar(&forwardContext, "context", "", "Kubeconfig context to use (defaults to the active one)")
	cmd.Flags().StringVar(&forwardName, "name", "", "Start only the declared forward with this name")
	cmd.Flags().BoolVar(&forwardDebug, "debug", false, "Enable debug logging")
	return cmd
}

func runForward(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := logging.LevelInfo
	if forwardDebug || cfg.Settings.Debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)

	requests, err := collectForwardRequests(args, cfg)
	if err != nil {
		return err
	}

	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := reporting.NewBus()
	defer bus.Close()

	manager := forward.NewManager(forward.Options{
		ReadyTimeout: cfg.Settings.ReadyTimeout(),
		KubectlPath:  cfg.Settings.KubectlPath,
		BindAddress:  cfg.Settings.BindAddress,
	}, bus)

	hub := newWatchHub(manager)
	go hub.run(ctx, bus.Subscribe(32))

	// Subscribed before the first Start so no termination slips through
	// between starting and watching.
	sub := bus.Subscribe(64)
	defer sub.Cancel()

	bind := displayBindAddress(cfg.Settings.BindAddress)
	started := 0
	for _, req := range requests {
		if err := preflightPod(ctx, req.target); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", req.target, err)
			continue
		}
		res, err := manager.Start(ctx, req.target, req.desired)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", req.target, err)
			continue
		}
		fmt.Printf("Forwarding %s:%d -> %s [session %s]\n", bind, res.Session.LocalPort, req.target, res.Session.ID)
		if res.Port.WasAdjusted {
			fmt.Printf("  note: %s\n", res.Port.Reason)
		}
		started++
	}
	if started == 0 {
		return fmt.Errorf("no forwards could be started")
	}

	fmt.Println("Press Ctrl+C to stop.")

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping forwards...")
			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return manager.StopAll(stopCtx)
		case n, ok := <-sub.C():
			if !ok {
				return nil
			}
			if !n.Abnormal {
				continue
			}
			fmt.Println(n.String())
			if len(manager.Query()) == 0 {
				return fmt.Errorf("all forwards have terminated")
			}
		}
	}
}

// collectForwardRequests maps the command line (or, with no arguments, the
// configuration file) onto the forwards to start.
func collectForwardRequests(args []string, cfg config.Config) ([]forwardRequest, error) {
	if forwardName != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--name selects a declared forward and cannot be combined with a pod argument")
		}
		return requestByName(forwardName, cfg)
	}
	if len(args) == 0 {
		return requestsFromConfig(cfg)
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("a pod name and at least one port mapping are required, e.g. \"fwdctl forward nginx 8080:80\"")
	}

	pod, err := parseTargetArg(args[0])
	if err != nil {
		return nil, err
	}

	kubeContext := resolveKubeContext(forwardContext)
	requests := make([]forwardRequest, 0, len(args)-1)
	for _, spec := range args[1:] {
		local, remote, err := parsePortSpec(spec)
		if err != nil {
			return nil, err
		}
		requests = append(requests, forwardRequest{
			target: forward.Target{
				Context:    kubeContext,
				Namespace:  forwardNamespace,
				Pod:        pod,
				RemotePort: remote,
			},
			desired: local,
		})
	}
	return requests, nil
}

func requestsFromConfig(cfg config.Config) ([]forwardRequest, error) {
	if len(cfg.Forwards) == 0 {
		return nil, fmt.Errorf("nothing to forward: pass a pod and port mappings, or declare forwards in the config file")
	}
	requests := make([]forwardRequest, 0, len(cfg.Forwards))
	for _, def := range cfg.Forwards {
		req, err := requestFromDefinition(def)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func requestByName(name string, cfg config.Config) ([]forwardRequest, error) {
	for _, def := range cfg.Forwards {
		if def.Name != name {
			continue
		}
		req, err := requestFromDefinition(def)
		if err != nil {
			return nil, err
		}
		return []forwardRequest{req}, nil
	}
	return nil, fmt.Errorf("no forward named %q in the config file", name)
}

func requestFromDefinition(def config.ForwardDefinition) (forwardRequest, error) {
	if err := def.Validate(); err != nil {
		return forwardRequest{}, fmt.Errorf("invalid forward in config: %w", err)
	}
	kubeContext := def.Context
	if kubeContext == "" {
		kubeContext = resolveKubeContext("")
	}
	return forwardRequest{
		target: forward.Target{
			Context:    kubeContext,
			Namespace:  def.Namespace,
			Pod:        def.Pod,
			RemotePort: def.RemotePort,
		},
		desired: def.LocalPort,
	}, nil
}

// parseTargetArg accepts a bare pod name or kubectl's "pod/NAME" form.
func parseTargetArg(arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("pod name must not be empty")
	}
	if !strings.Contains(arg, "/") {
		return arg, nil
	}
	kind, name, _ := strings.Cut(arg, "/")
	switch kind {
	case "pod", "pods", "po":
	default:
		return "", fmt.Errorf("unsupported resource type %q: only pods can be forwarded", kind)
	}
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid pod argument %q", arg)
	}
	return name, nil
}

// parsePortSpec parses kubectl-style port mappings. "8080:80" asks for local
// 8080 to remote 80; a bare "80" returns local 0, which the manager defaults
// to the remote port.
func parsePortSpec(spec string) (local, remote int, err error) {
	localPart, remotePart, found := strings.Cut(spec, ":")
	if !found {
		remotePart = localPart
		localPart = ""
	}
	remote, err = parsePortNumber(remotePart)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port mapping %q: %w", spec, err)
	}
	if localPart != "" {
		local, err = parsePortNumber(localPart)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid port mapping %q: %w", spec, err)
		}
	}
	return local, remote, nil
}

func parsePortNumber(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("missing port number")
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

// resolveKubeContext falls back to the kubeconfig's active context so the
// session registry records which cluster a forward belongs to even when the
// user never names one.
func resolveKubeContext(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	current, err := kube.GetCurrentKubeContext()
	if err != nil {
		logging.Debug(cliSubsystem, "Could not determine current kube context: %v", err)
		return ""
	}
	return current
}

// preflightPod verifies the target exists and is running before a kubectl
// process is spawned for it. Cluster access problems only log a warning;
// kubectl remains the authority on whether the forward works.
func preflightPod(ctx context.Context, target forward.Target) error {
	client, err := newKubeClient(target.Context)
	if err != nil {
		logging.Warn(cliSubsystem, "Skipping pod check for %s: %v", target, err)
		return nil
	}
	details, err := client.GetPod(ctx, target.Namespace, target.Pod)
	if err != nil {
		return err
	}
	if !details.Running() {
		return fmt.Errorf("pod %s/%s is not running (phase %s)", target.Namespace, target.Pod, details.Phase)
	}
	if !details.HasPort(target.RemotePort) {
		logging.Warn(cliSubsystem, "Pod %s/%s declares no container port %d; forwarding anyway", target.Namespace, target.Pod, target.RemotePort)
	}
	return nil
}

func displayBindAddress(bind string) string {
	if bind == "" {
		return "127.0.0.1"
	}
	return bind
}
