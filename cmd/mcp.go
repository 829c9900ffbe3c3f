package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fwdctl/internal/config"
	"fwdctl/internal/forward"
	"fwdctl/internal/mcptools"
	"fwdctl/internal/reporting"
	"fwdctl/pkg/logging"
)

var mcpSSE bool
var mcpHost string
var mcpPort int
var mcpDebug bool

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose the forward manager to MCP clients",
		Long: `Runs an MCP server whose tools start, list, and stop port-forward
sessions. MCP clients get the same session registry, port fallback, and pod
cleanup the CLI and dashboard use.

By default the server speaks the stdio transport, which is what most MCP
client configurations expect. With --sse it serves the SSE transport over
HTTP instead.

Tools: forward_start, forward_stop, forward_stop_all, forward_list,
pod_inspect.`,
		Args: cobra.NoArgs,
		RunE: runMCP,
	}
	cmd.Flags().BoolVar(&mcpSSE, "sse", false, "Serve the SSE transport over HTTP instead of stdio")
	cmd.Flags().StringVar(&mcpHost, "host", "localhost", "Host to bind the SSE server to")
	cmd.Flags().IntVar(&mcpPort, "port", 8090, "Port for the SSE server")
	cmd.Flags().BoolVar(&mcpDebug, "debug", false, "Enable debug logging")
	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Logs go to stderr: with the stdio transport, stdout belongs to the
	// protocol.
	level := logging.LevelInfo
	if mcpDebug || cfg.Settings.Debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)

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

	srv := mcptools.NewServer(rootCmd.Version, mcptools.NewForwardTools(manager))

	// Forwards started over MCP die with the server.
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := manager.StopAll(stopCtx); err != nil {
			logging.Error(cliSubsystem, err, "Failed to stop forwards on shutdown")
		}
	}()

	if !mcpSSE {
		return srv.ServeStdio()
	}

	if err := srv.StartSSE(mcpHost, mcpPort); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "MCP server listening on http://%s:%d/sse. Press Ctrl+C to stop.\n", mcpHost, mcpPort)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
