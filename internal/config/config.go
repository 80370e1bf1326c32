// Package config holds the runtime configuration of retain: task pacing,
// the outcome scenario and logging.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pablasso/retain/internal/task"
)

// Preset controls task pacing.
type Preset string

const (
	PresetQuick  Preset = "quick"
	PresetMedium Preset = "medium"
	PresetSlow   Preset = "slow"
)

func ParsePreset(value string) (Preset, error) {
	switch Preset(strings.ToLower(strings.TrimSpace(value))) {
	case PresetQuick, PresetMedium, PresetSlow:
		return Preset(strings.ToLower(strings.TrimSpace(value))), nil
	default:
		return "", fmt.Errorf("invalid preset %q (valid: quick, medium, slow)", value)
	}
}

type pacing struct {
	Steps    int
	Interval time.Duration
}

func pacingForPreset(preset Preset) (pacing, error) {
	switch preset {
	case PresetQuick:
		return pacing{Steps: 200, Interval: 40 * time.Millisecond}, nil
	case PresetMedium:
		return pacing{Steps: 100, Interval: 100 * time.Millisecond}, nil
	case PresetSlow:
		return pacing{Steps: 213, Interval: 150 * time.Millisecond}, nil
	default:
		return pacing{}, fmt.Errorf("unknown preset %q", preset)
	}
}

// Scenario controls how a run ends when nobody cancels it.
type Scenario string

const (
	ScenarioSuccess Scenario = "success"
	ScenarioFail    Scenario = "fail"
)

func ParseScenario(value string) (Scenario, error) {
	switch Scenario(strings.ToLower(strings.TrimSpace(value))) {
	case ScenarioSuccess, ScenarioFail:
		return Scenario(strings.ToLower(strings.TrimSpace(value))), nil
	default:
		return "", fmt.Errorf("invalid scenario %q (valid: success, fail)", value)
	}
}

// LogFormat is the format of log lines.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warning": true,
	"error":   true,
}

// Config is the runtime configuration.
type Config struct {
	Preset Preset
	// Steps and Interval override the preset when set.
	Steps    int
	Interval time.Duration

	Scenario Scenario
	// FailAt is the step that fails in the fail scenario. Zero means halfway.
	FailAt int

	LogLevel  string
	LogFormat LogFormat
	LogFile   string
	NoLog     bool
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Preset:    PresetMedium,
		Scenario:  ScenarioSuccess,
		LogLevel:  "info",
		LogFormat: LogFormatText,
	}
}

// Pacing returns the effective step count and interval.
func (c Config) Pacing() (steps int, interval time.Duration) {
	p, err := pacingForPreset(c.Preset)
	if err != nil {
		p = pacing{Steps: task.DefaultSteps, Interval: task.DefaultInterval}
	}
	steps, interval = p.Steps, p.Interval
	if c.Steps > 0 {
		steps = c.Steps
	}
	if c.Interval > 0 {
		interval = c.Interval
	}
	return steps, interval
}

// FailStep returns the step that fails in the fail scenario.
func (c Config) FailStep() int {
	if c.FailAt > 0 {
		return c.FailAt
	}
	steps, _ := c.Pacing()
	return steps / 2
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error

	if _, err := pacingForPreset(c.Preset); err != nil {
		errs = append(errs, err)
	}
	if c.Steps < 0 {
		errs = append(errs, fmt.Errorf("steps must be at least 1, got %d", c.Steps))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must not be negative, got %s", c.Interval))
	}
	switch c.Scenario {
	case ScenarioSuccess:
	case ScenarioFail:
		steps, _ := c.Pacing()
		if c.FailAt < 0 || c.FailAt >= steps {
			errs = append(errs, fmt.Errorf("fail step %d out of range [0, %d)", c.FailAt, steps))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown scenario %q", c.Scenario))
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Errorf("invalid log level %q (valid: debug, info, warning, error)", c.LogLevel))
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q (valid: text, json)", c.LogFormat))
	}

	return errors.Join(errs...)
}

// TaskFactory returns a constructor for the task each run executes.
func (c Config) TaskFactory() func() *task.Task {
	steps, interval := c.Pacing()
	scenario := c.Scenario
	failStep := c.FailStep()

	return func() *task.Task {
		t := task.New(steps, interval)
		if scenario == ScenarioFail {
			t.Step = task.FailAt(failStep, t.Step)
		}
		return t
	}
}
