package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/spance/devicecheck/config"
	"github.com/spance/devicecheck/constants"
	"github.com/spance/devicecheck/history"
	"github.com/spance/devicecheck/readiness"
	"github.com/spance/devicecheck/readiness/android"
	"github.com/spance/devicecheck/readiness/definitions"
	"github.com/spance/devicecheck/report"
)

// Options holds the command line flags.
type Options struct {
	ConfigPath   string
	App          string
	Timeout      time.Duration
	StepTimeout  time.Duration
	Deadline     time.Duration
	Settle       time.Duration
	ADBBackend   string
	JSON         bool
	Screenshot   bool
	NoHistory    bool
	Debug        bool
	HistoryLimit int
}

var (
	opts = &Options{}
	cfg  *config.Config

	errNotReady = errors.New("device is not ready")
)

var rootCmd = &cobra.Command{
	Use:   "devicecheck [IP[:PORT]]",
	Short: "Check that a cloud Android device is ready for automation",
	Long: `devicecheck connects to a remote Android device by trying ADB WiFi, the
uiautomator2 HTTP agent and a bare adb connect in turn, then verifies that the
screen wakes and that gestures, taps, UI dumps and hardware keys work.`,
	Example: `  # Check a GeeLark device on the default port (20624)
  devicecheck 128.14.109.187

  # Check a device on an explicit port and print JSON
  devicecheck 192.168.1.100:5555 --json

  # Check for TikTok instead of Instagram, with a 30s overall deadline
  devicecheck 10.0.0.8:20624 --app tiktok --deadline 30s

  # Use the adb server protocol instead of the adb binary
  devicecheck 10.0.0.8 --adb-backend server`,
	Args:              cobra.MaximumNArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runCheck,
}

func init() {
	defaults := config.Default()

	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "",
		fmt.Sprintf("Config file (default: %s)", config.Path()))

	rootCmd.PersistentFlags().StringVar(&opts.ADBBackend, "adb-backend", defaults.ADBBackend,
		"ADB backend: exec (adb binary) or server (adb server protocol)")

	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false,
		"Enable debug mode (default: false)")

	rootCmd.Flags().StringVarP(&opts.App, "app", "a", defaults.App,
		"Target app package or alias that must be installed")

	rootCmd.Flags().DurationVar(&opts.Timeout, "timeout", defaults.StrategyTimeout,
		"Timeout for each connection strategy")

	rootCmd.Flags().DurationVar(&opts.StepTimeout, "step-timeout", defaults.StepTimeout,
		"Timeout for each verification step")

	rootCmd.Flags().DurationVar(&opts.Deadline, "deadline", 0,
		"Overall deadline for the whole check (0 means none)")

	rootCmd.Flags().DurationVar(&opts.Settle, "settle", defaults.Settle,
		"Delay after waking and unlocking the screen")

	rootCmd.Flags().BoolVar(&opts.JSON, "json", false,
		"Print the report as JSON")

	rootCmd.Flags().BoolVar(&opts.Screenshot, "screenshot", false,
		"Also verify that a screenshot can be captured")

	rootCmd.Flags().BoolVar(&opts.NoHistory, "no-history", false,
		"Do not record this run in the history database")

	addCommands(rootCmd)
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, errNotReady) {
		log.Error().Err(err).Msg("❌")
	}
	os.Exit(1)
}

func setup(cmd *cobra.Command, args []string) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if opts.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := config.Ensure(); err != nil {
		log.Warn().Err(err).Msg("ignoring .env")
	}
	loaded, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	cfg = loaded
	applyFlags(cmd)
	return cfg.Validate()
}

// applyFlags lets explicitly set flags win over config file and environment.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("adb-backend") {
		cfg.ADBBackend = opts.ADBBackend
	}
	if flags.Changed("app") {
		cfg.App = opts.App
	}
	if flags.Changed("timeout") {
		cfg.StrategyTimeout = opts.Timeout
	}
	if flags.Changed("step-timeout") {
		cfg.StepTimeout = opts.StepTimeout
	}
	if flags.Changed("deadline") {
		cfg.Deadline = opts.Deadline
	}
	if flags.Changed("settle") {
		cfg.Settle = opts.Settle
	}
	if flags.Changed("no-history") {
		cfg.History = !opts.NoHistory
	}
}

func newBridge() (android.Bridge, error) {
	if cfg.ADBBackend == constants.BackendServer {
		return android.NewServerBridge()
	}
	return android.NewExecBridge(cfg.ADBPath), nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	raw := cfg.Device
	if len(args) > 0 {
		raw = args[0]
	}
	if raw == "" {
		log.Info().Msg("No device specified.")
		log.Info().Msg("Usage: devicecheck [IP[:PORT]]")
		log.Info().Msgf("Example: devicecheck 192.168.1.100:5555 (port defaults to %d)", cfg.DefaultPort)
		return errors.New("no device address given")
	}
	addr, err := definitions.ParseAddress(raw, cfg.DefaultPort)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}

	if cfg.ADBBackend == constants.BackendExec && !checkSystemRequirements(ctx, cfg.ADBPath) {
		log.Warn().Msg("adb is unavailable, only the HTTP strategy can succeed")
	}
	bridge, err := newBridge()
	if err != nil {
		return err
	}

	steps := readiness.DefaultSteps()
	if opts.Screenshot {
		steps = append(steps, readiness.ScreenshotStep())
	}
	checker := &readiness.Checker{
		Resolver: readiness.NewResolver(cfg.StrategyTimeout),
		Runner: &readiness.Runner{
			StepTimeout:   cfg.StepTimeout,
			Settle:        cfg.Settle,
			GestureSettle: cfg.GestureSettle,
		},
		Strategies: readiness.DefaultStrategies(readiness.TransportOptions{
			Bridge:      bridge,
			HTTPPort:    cfg.HTTPPort,
			HTTPTimeout: cfg.StepTimeout,
		}),
		Steps:    steps,
		Packages: readiness.ShellPackages{Fallback: android.NewHandle(bridge, addr.String())},
		Package:  constants.ResolvePackage(cfg.App),
	}

	result := checker.Run(ctx, addr)
	recordHistory(result)

	if opts.JSON {
		err = report.RenderJSON(os.Stdout, result)
	} else {
		err = report.RenderText(os.Stdout, result)
	}
	if err != nil {
		return errors.Wrap(err, "render report")
	}
	if !result.OverallSuccess {
		return errNotReady
	}
	return nil
}

func recordHistory(r *definitions.Report) {
	if !cfg.History {
		return
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		log.Warn().Err(err).Msg("open history")
		return
	}
	defer store.Close()
	// 检查已结束，不受 deadline 影响
	if err := store.Record(context.Background(), r); err != nil {
		log.Warn().Err(err).Msg("record history")
		return
	}
	log.Debug().Str("db", store.Path()).Str("run", r.ID).Msg("run recorded")
}

func checkSystemRequirements(ctx context.Context, adbPath string) bool {
	log.Info().Msg("🔍 Checking system requirements...")
	log.Info().Msg(strings.Repeat("-", 50))

	log.Info().Msg("1. Checking ADB installation... ")
	if _, err := exec.LookPath(adbPath); err != nil {
		log.Error().Msg("❌ FAILED")
		log.Info().Msg("   Error: ADB is not installed or not in PATH.")
		log.Info().Msg("   Solution: Install ADB:")
		log.Info().Msg("     - macOS: brew install android-platform-tools")
		log.Info().Msg("     - Linux: sudo apt install android-tools-adb")
		log.Info().Msg("     - Windows: Download from https://developer.android.com/studio/releases/platform-tools")
		log.Info().Msg("   Or use --adb-backend server with a running adb server.")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DefaultCommandTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, adbPath, "version").Output()
	if err != nil {
		log.Error().Msg("❌ FAILED")
		log.Info().Msgf("   Error: ADB command failed to run: %v", err)
		return false
	}
	versionLine, _, _ := strings.Cut(string(output), "\n")
	versionLine = strings.TrimSpace(versionLine)
	if versionLine == "" {
		versionLine = "installed"
	}
	log.Info().Msgf("✅ OK (%s)", versionLine)
	log.Info().Msg(strings.Repeat("-", 50))
	return true
}
