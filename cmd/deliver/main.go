package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonlambert/deliver/internal/config"
	"github.com/jonlambert/deliver/internal/dispatch"
	"github.com/jonlambert/deliver/internal/errors"
	"github.com/jonlambert/deliver/internal/executor"
	"github.com/jonlambert/deliver/internal/host"
	"github.com/jonlambert/deliver/internal/logging"
	"github.com/jonlambert/deliver/internal/output"
	"github.com/jonlambert/deliver/internal/runlog"
	"github.com/jonlambert/deliver/internal/sshx"
	"github.com/jonlambert/deliver/internal/strategy"
)

var (
	// Build-time variables (set via -ldflags)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// CLI flags
var (
	flagApp        string
	flagHosts      string
	flagUser       string
	flagBranch     string
	flagStrategy   string
	flagSupervisor string
	flagSSHTimeout time.Duration
	flagMode       string
	flagVerbose    bool
	flagDebug      bool
	flagTest       bool
	flagConfig     string
	flagLogLevel   string
	flagLogFormat  string
	flagQuiet      bool
)

const strategyDir = ".deliver/strategies"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "deliver: %v\n", err)
		os.Exit(errors.ExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "deliver [flags] [strategy]",
	Short: "Deploy an application to one or many hosts",
	Long: `deliver resolves configuration from defaults, the project file, and
invocation-time overrides, loads the selected deployment strategy, and runs
its steps against every configured host in parallel.

Execution modes:
  compact   run in the background behind a progress indicator (default)
  verbose   run sequentially, echoing every command
  debug     verbose plus shell tracing
  test      print what would run without touching any state

Examples:
  # Deploy with the default strategy using the project file
  deliver

  # Deploy a one-off branch to an explicit host list
  deliver --branch hotfix --hosts "web1,web2"

  # Audit exactly what a strategy would run
  deliver --mode test restart`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			flagStrategy = args[0]
			_ = cmd.Flags().Set("strategy", args[0])
		}
		return runDeploy(cmd, os.Stdout)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagApp, "app", "", "Application name")
	rootCmd.PersistentFlags().StringVar(&flagHosts, "hosts", "", "Host list (comma or space separated)")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "Deploy user")
	rootCmd.PersistentFlags().StringVar(&flagBranch, "branch", "", "Branch to deploy")
	rootCmd.PersistentFlags().StringVar(&flagStrategy, "strategy", "", "Deploy strategy name")
	rootCmd.PersistentFlags().StringVar(&flagSupervisor, "supervisor", "", "Process supervisor name")
	rootCmd.PersistentFlags().DurationVar(&flagSSHTimeout, "ssh-timeout", 0, "Connection-setup timeout")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Project configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (json, text)")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "Suppress non-error output")

	rootCmd.Flags().StringVar(&flagMode, "mode", "", "Execution mode (compact, verbose, debug, test)")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "V", false, "Shorthand for --mode verbose")
	rootCmd.Flags().BoolVarP(&flagDebug, "debug", "D", false, "Shorthand for --mode debug")
	rootCmd.Flags().BoolVarP(&flagTest, "test", "T", false, "Shorthand for --mode test")

	rootCmd.AddCommand(checkCmd, strategiesCmd, versionCmd)
}

// runtimeOverrides snapshots invocation-time values for the settings that
// may be overridden per run. Only explicitly set flags are captured, so
// file and default values survive for the rest.
func runtimeOverrides(cmd *cobra.Command) map[string]any {
	overrides := make(map[string]any)

	capture := func(key string, value any) {
		if cmd.Flags().Changed(key) {
			overrides[key] = value
		}
	}
	capture("app", flagApp)
	capture("hosts", flagHosts)
	capture("user", flagUser)
	capture("branch", flagBranch)
	capture("strategy", flagStrategy)
	capture("supervisor", flagSupervisor)
	capture("ssh-timeout", flagSSHTimeout)
	capture("log-level", flagLogLevel)
	capture("log-format", flagLogFormat)
	capture("quiet", flagQuiet)

	if cmd.Flags().Changed("mode") {
		overrides["mode"] = flagMode
	}
	// Mode shorthands win over --mode if both are given.
	if flagVerbose {
		overrides["mode"] = config.ModeVerbose
	}
	if flagDebug {
		overrides["mode"] = config.ModeDebug
	}
	if flagTest {
		overrides["mode"] = config.ModeTest
	}

	return overrides
}

// effectiveLogLevel resolves the logging level for the run. Debug mode
// implies debug-level logging regardless of the configured level.
func effectiveLogLevel(cfg *config.Config) string {
	if cfg.Mode == config.ModeDebug {
		return "debug"
	}
	return cfg.LogLevel
}

func newManager() *config.ViperManager {
	if flagConfig != "" {
		return config.NewManagerWithFile(flagConfig)
	}
	return config.NewManager()
}

func runDeploy(cmd *cobra.Command, out io.Writer) error {
	cfg, err := newManager().Load(runtimeOverrides(cmd))
	if err != nil {
		logging.NewLoggerFromConfig(flagLogLevel, flagLogFormat, flagQuiet).
			LogConfigError("configuration merge", err)
		return err
	}

	logger := logging.NewLoggerFromConfig(effectiveLogLevel(cfg), cfg.LogFormat, cfg.Quiet)
	logger.LogConfigLoad("defaults, project file, and invocation overrides")

	hosts, err := host.ParseList(cfg.Hosts, cfg.User)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		return &errors.MissingRequiredConfigError{Keys: []string{"hosts"}}
	}

	registry := strategy.NewRegistry(strategyDir)
	strat, err := registry.Load(cfg.Strategy)
	if err != nil {
		if unknown, ok := err.(*errors.UnknownStrategyError); ok {
			output.StrategyList(cmd.ErrOrStderr(), unknown.Discovered)
		}
		return err
	}
	logger.LogStrategyLoad(cfg.Strategy, strat.Name, len(strat.Steps))

	// The run log and the transport are the only state the test mode is
	// not allowed to touch.
	log := runlog.New(io.Discard)
	if cfg.Mode != config.ModeTest {
		log = runlog.Open(cfg.LogFile)
	}
	defer log.Close()

	transport := sshx.NewTransport(cfg.SSHTimeout, logger)
	exec := executor.New(cfg, transport, log, logger)

	// Progress markers and echoed commands are non-error output.
	progressOut := out
	if logger.IsQuiet() {
		progressOut = io.Discard
	}
	dispatcher := dispatch.New(cfg, exec, log, logger, progressOut)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt := &strategy.Runtime{
		Cfg:        cfg,
		Hosts:      hosts,
		Dispatcher: dispatcher,
		Logger:     logger,
	}

	err = strat.Execute(ctx, rt)
	if err != nil && ctx.Err() != nil {
		// The signal arrived mid-run: report "aborted", not "failed".
		return &errors.InterruptedError{Signal: "signal"}
	}
	return err
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration without deploying",
	Long: `check resolves the configuration exactly as a deploy would and prints a
pass/fail table covering every checked setting. Every problem is reported
in one pass; nothing is deployed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := newManager().Check(runtimeOverrides(cmd))
		if err != nil {
			return err
		}

		output.CheckTable(cmd.OutOrStdout(), results)

		var missing []string
		configured := ""
		for _, r := range results {
			if r.Required && !r.OK {
				missing = append(missing, r.Key)
			}
			if r.Key == "strategy" {
				configured = r.Value
			}
		}

		// Strategy resolution is part of the check: an unknown name is a
		// configuration error even when every key is present.
		registry := strategy.NewRegistry(strategyDir)
		if configured != "" {
			if _, err := registry.Load(configured); err != nil {
				if unknown, ok := err.(*errors.UnknownStrategyError); ok {
					output.StrategyList(cmd.ErrOrStderr(), unknown.Discovered)
				}
				return err
			}
		}

		if len(missing) > 0 {
			return &errors.MissingRequiredConfigError{Keys: missing}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
		return nil
	},
}

var strategiesCmd = &cobra.Command{
	Use:           "strategies",
	Short:         "List the discovered deployment strategies",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := strategy.NewRegistry(strategyDir).Names()
		if err != nil {
			return err
		}
		output.StrategyList(cmd.OutOrStdout(), names)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deliver %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildTime)
	},
}
