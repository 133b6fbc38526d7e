package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arjenw/portward/internal/config"
	"github.com/arjenw/portward/internal/inventory"
	"github.com/arjenw/portward/internal/logging"
	"github.com/arjenw/portward/internal/monitor"
	"github.com/arjenw/portward/internal/notify"
	"github.com/arjenw/portward/internal/port"
	"github.com/arjenw/portward/internal/prefs"
	"github.com/arjenw/portward/internal/process"
	"github.com/arjenw/portward/internal/tui"
)

var (
	// Set via ldflags at build time.
	version = "dev"

	// Global flags.
	jsonOutput bool
	configPath string

	// intervalOverride, when positive, wins over the configured
	// auto-refresh interval. Set by the watch command's --interval flag.
	intervalOverride int
)

var rootCmd = &cobra.Command{
	Use:   "portward",
	Short: "Port & process monitor",
	Long: `portward shows what processes are listening on which ports, lets you
kill them gracefully or forcibly, tracks favorite ports, and notifies
when watched ports start or stop listening.
Launch without subcommands for interactive TUI mode.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
			switch shell {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", shell)
			}
		}

		// Logging would corrupt the alternate screen, so the TUI runs
		// with a discarded logger.
		app, err := buildApp(io.Discard)
		if err != nil {
			return err
		}

		interval := time.Duration(app.cfg.RefreshInterval) * time.Second
		p := tea.NewProgram(tui.New(app.monitor, version, interval), tea.WithAltScreen())
		app.monitor.OnTransition(func(t inventory.Transition) {
			p.Send(tui.TransitionMsg{Port: t.Port, Active: t.Active})
		})
		_, err = p.Run()
		app.savePrefs()
		return err
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("portward %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish)")
	rootCmd.Flags().MarkHidden("generate-completion")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(favCmd)
	rootCmd.AddCommand(watchportCmd)
	rootCmd.AddCommand(historyCmd)
}

// app bundles the wired-up collaborators a command needs.
type app struct {
	cfg       *config.Config
	monitor   *monitor.Monitor
	scanner   *port.LsofScanner
	signaler  *process.ExecSignaler
	prefStore *prefs.Store
	log       zerolog.Logger
}

// buildApp loads config and preferences and wires scanner, signaler,
// inventory, and monitor together. All dependencies are explicit; nothing
// global beyond the cobra command tree.
func buildApp(logTo io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logging.New(logTo, cfg.LogLevel)
	runner := &port.RealCmdRunner{}
	cmdTimeout := time.Duration(cfg.CommandTimeout) * time.Second
	scanner := port.NewLsofScanner(runner, cmdTimeout, log)
	signaler := process.NewExecSignaler(runner, log)
	store := inventory.NewStore(log)

	prefStore, err := prefs.NewStore()
	if err != nil {
		return nil, err
	}
	saved, err := prefStore.Load()
	if err != nil {
		log.Warn().Err(err).Msg("could not load preferences, starting fresh")
		saved = &prefs.Data{}
	}
	store.SetFavorites(saved.Favorites)
	store.SetWatches(saved.Watches)

	var notifier notify.Notifier = notify.LogNotifier{Log: log}
	if cfg.Notifications {
		notifier = notify.NewOSANotifier(runner, log)
	}

	if intervalOverride > 0 {
		cfg.RefreshInterval = intervalOverride
	}
	interval := time.Duration(cfg.RefreshInterval) * time.Second
	mon := monitor.New(scanner, signaler, store, interval, notifier, log)

	return &app{
		cfg:       cfg,
		monitor:   mon,
		scanner:   scanner,
		signaler:  signaler,
		prefStore: prefStore,
		log:       log,
	}, nil
}

// savePrefs writes the current favorites and watch specs back to disk.
func (a *app) savePrefs() {
	data := &prefs.Data{
		Favorites: a.monitor.Store().Favorites(),
		Watches:   a.monitor.Store().Watches(),
	}
	if err := a.prefStore.Save(data); err != nil {
		a.log.Warn().Err(err).Msg("failed to save preferences")
	}
}
