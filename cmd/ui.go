package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"fwdctl/internal/config"
	"fwdctl/internal/forward"
	"fwdctl/internal/reporting"
	"fwdctl/internal/tui"
	"fwdctl/pkg/logging"
)

var uiDebug bool

func newUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive port-forward dashboard",
		Long: `Opens a terminal dashboard showing every forward session with its local
port, status, and uptime. Sessions can be started from a form or from the
forwards declared in the configuration file, stopped individually, and their
local addresses copied to the clipboard. Lifecycle notices and logs stream
into the dashboard as they happen.`,
		Args: cobra.NoArgs,
		RunE: runUI,
	}
	cmd.Flags().BoolVar(&uiDebug, "debug", false, "Enable debug logging")
	return cmd
}

func runUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Channel-based logging keeps log lines inside the dashboard instead of
	// corrupting the terminal.
	level := logging.LevelInfo
	if uiDebug || cfg.Settings.Debug {
		level = logging.LevelDebug
	}
	logChan := logging.InitForTUI(level)
	defer logging.CloseTUIChannel()

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

	model := tui.NewModel(tui.Config{
		Controller:  manager,
		Notices:     bus.Subscribe(64),
		Logs:        logChan,
		Forwards:    cfg.Forwards,
		BindAddress: displayBindAddress(cfg.Settings.BindAddress),
		Version:     rootCmd.Version,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running dashboard: %w", err)
	}

	// The dashboard has exited; take its forwards down with it.
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return manager.StopAll(stopCtx)
}
