package tui

import (
	"fmt"
	"time"

	"github.com/pablasso/retain/internal/config"
	"github.com/pablasso/retain/internal/log"
)

// Options configures TUI startup behavior.
type Options struct {
	Config config.Config
	Logger log.Logger
	// AutoStart starts the task as soon as the first screen is shown.
	AutoStart bool
	// Now is the clock used by screens, time.Now when nil.
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = log.Noop
	}
	o.Logger = o.Logger.WithValues(log.Kv{"svc": "tui.Model"})
	if o.Now == nil {
		o.Now = time.Now
	}
}

// title describes the task pacing for the screen header.
func (o Options) title() string {
	steps, interval := o.Config.Pacing()
	name := string(o.Config.Preset)
	if name == "" {
		name = "custom"
	}
	title := fmt.Sprintf("%s: %d steps × %s", name, steps, interval)
	if o.Config.Scenario == config.ScenarioFail {
		title += fmt.Sprintf(" (fails at step %d)", o.Config.FailStep())
	}
	return title
}
