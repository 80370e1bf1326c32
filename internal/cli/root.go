package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pablasso/retain/internal/config"
	"github.com/pablasso/retain/internal/log"
	"github.com/pablasso/retain/internal/tui"
	"github.com/pablasso/retain/internal/version"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath string
	preset     string
	steps      int
	interval   time.Duration
	scenario   string
	failAt     int
	logLevel   string
	logFormat  string
	logFile    string
	noLog      bool
	autoStart  bool
}

// runTUI launches the interactive UI. Tests replace it.
var runTUI = tui.Run

// NewRootCommand creates the retain command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "retain",
		Short: "Background task that survives its screen being rebuilt",
		Long: `Retain runs a long background task while the screen showing it is torn
down and rebuilt. Resize the terminal or press r to recreate the screen; the
task keeps running and the new screen picks up its progress.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			return startTUI(cfg, opts.autoStart)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	f.StringVar(&opts.preset, "preset", string(config.PresetMedium), "Task pacing: quick|medium|slow")
	f.IntVar(&opts.steps, "steps", 0, "Number of steps, overrides the preset")
	f.DurationVar(&opts.interval, "interval", 0, "Time per step, overrides the preset")
	f.StringVar(&opts.scenario, "scenario", string(config.ScenarioSuccess), "Task scenario: success|fail")
	f.IntVar(&opts.failAt, "fail-at", 0, "Step that fails in the fail scenario (default halfway)")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug|info|warning|error")
	f.StringVar(&opts.logFormat, "log-format", string(config.LogFormatText), "Log format: text|json")
	f.StringVar(&opts.logFile, "log-file", "", "Write logs to this file")
	f.BoolVar(&opts.noLog, "no-log", false, "Disable logging")

	cmd.Flags().BoolVar(&opts.autoStart, "start", false, "Start the task as soon as the screen opens")

	cmd.AddCommand(newRunCommand(opts))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// resolve builds the configuration: defaults, then the config file, then
// the flags that were set explicitly.
func (o *rootOptions) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	if o.configPath != "" {
		loaded, err := config.Load(o.configPath, cfg)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}

	if changed("preset") {
		p, err := config.ParsePreset(o.preset)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Preset = p
	}
	if changed("steps") {
		cfg.Steps = o.steps
	}
	if changed("interval") {
		cfg.Interval = o.interval
	}
	if changed("scenario") {
		s, err := config.ParseScenario(o.scenario)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Scenario = s
	}
	if changed("fail-at") {
		cfg.FailAt = o.failAt
	}
	if changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = config.LogFormat(o.logFormat)
	}
	if changed("log-file") {
		cfg.LogFile = o.logFile
	}
	if changed("no-log") {
		cfg.NoLog = o.noLog
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func startTUI(cfg config.Config, autoStart bool) error {
	// The TUI owns the terminal, so it only logs to a file.
	var logger log.Logger = log.Noop
	if cfg.LogFile != "" && !cfg.NoLog {
		l, closeLog, err := newLogger(cfg, io.Discard)
		if err != nil {
			return err
		}
		defer closeLog()
		logger = l
	}

	return runTUI(tui.Options{
		Config:    cfg,
		Logger:    logger,
		AutoStart: autoStart,
	})
}
