package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/pablasso/retain/internal/config"
	"github.com/pablasso/retain/internal/display"
	"github.com/pablasso/retain/internal/log"
	"github.com/pablasso/retain/internal/session"
	"github.com/pablasso/retain/internal/task"
)

type runOptions struct {
	cancelAfter time.Duration
	rebindEvery time.Duration
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the task without the interactive UI",
		Long: `Run the task once with a plain status line. Use --rebind-every to replace
the status line with a fresh one mid-run, and --cancel-after to cancel the
task. SIGINT or SIGTERM cancel the task; a second signal exits immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.resolve(cmd)
			if err != nil {
				return err
			}

			logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			return runHeadless(cmd.Context(), headlessConfig{
				Config:      cfg,
				CancelAfter: opts.cancelAfter,
				RebindEvery: opts.rebindEvery,
				Out:         cmd.OutOrStdout(),
				Logger:      logger,
			})
		},
	}

	cmd.Flags().DurationVar(&opts.cancelAfter, "cancel-after", 0, "Cancel the task after this long (0 never)")
	cmd.Flags().DurationVar(&opts.rebindEvery, "rebind-every", 0, "Replace the status line with a new one this often (0 never)")

	return cmd
}

type headlessConfig struct {
	Config      config.Config
	CancelAfter time.Duration
	RebindEvery time.Duration
	Out         io.Writer
	Logger      log.Logger
	// Signals cancel the task, SIGINT and SIGTERM when empty.
	Signals []os.Signal
}

func (c *headlessConfig) defaults() error {
	if c.Out == nil {
		return fmt.Errorf("output is required")
	}
	if c.CancelAfter < 0 || c.RebindEvery < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"cmd": "run"})
	if len(c.Signals) == 0 {
		c.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	return nil
}

// outcome is the terminal event of the headless run.
type outcome struct {
	status task.Status
	err    error
}

// reporter forwards runner events to the current display and reports the
// terminal one. It is only touched from the loop goroutine.
type reporter struct {
	display   *display.Display
	logger    log.Logger
	sometimes rate.Sometimes
	done      chan<- outcome
}

func (r *reporter) OnStarted() { r.display.OnStarted() }

func (r *reporter) OnProgress(fraction float64) {
	r.display.OnProgress(fraction)
	r.sometimes.Do(func() {
		r.logger.Debugf("Progress %.0f%%", fraction*100)
	})
}

func (r *reporter) OnCancelled() {
	r.display.OnCancelled()
	r.done <- outcome{status: task.StatusCancelled}
}

func (r *reporter) OnCompleted() {
	r.display.OnCompleted()
	r.done <- outcome{status: task.StatusCompleted}
}

func (r *reporter) OnFailed(err error) {
	r.display.OnFailed(err)
	r.done <- outcome{status: task.StatusFailed, err: err}
}

var _ task.Listener = (*reporter)(nil)

// headless drives a session from a task.Loop, the goroutine that plays the
// UI role.
type headless struct {
	cfg     headlessConfig
	loop    *task.Loop
	session *session.Session
	done    chan outcome

	// Owned by the loop goroutine.
	binding  *session.Binding
	reporter *reporter
}

func runHeadless(ctx context.Context, cfg headlessConfig) error {
	if err := cfg.defaults(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loop := task.NewLoop()
	sess, err := session.New(session.Config{
		Dispatcher: loop,
		NewTask:    cfg.Config.TaskFactory(),
		Logger:     cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create session: %w", err)
	}

	h := &headless{
		cfg:     cfg,
		loop:    loop,
		session: sess,
		done:    make(chan outcome, 1),
	}

	steps, interval := cfg.Config.Pacing()
	cfg.Logger.Infof("Running %d steps every %s", steps, interval)

	loop.Post(func() {
		h.attach()
		sess.Start()
	})

	err = h.run(ctx)

	if h.reporter != nil {
		h.reporter.display.Stop()
	}
	sess.Close()
	sess.Wait()

	return err
}

func (h *headless) run(ctx context.Context) error {
	var g run.Group

	// Loop, the UI goroutine.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := h.loop.Run(ctx)
				if err != nil {
					return fmt.Errorf("loop stopped: %w", err)
				}
				return nil
			},
			func(_ error) {
				h.loop.Close()
			},
		)
	}

	// Task outcome.
	{
		stop := make(chan struct{})
		g.Add(
			func() error {
				select {
				case o := <-h.done:
					return h.finish(o)
				case <-stop:
					return nil
				}
			},
			func(_ error) {
				close(stop)
			},
		)
	}

	// OS signals cancel the task; the outcome actor ends the group.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), h.cfg.Signals...)
		defer signalCancel()

		stop := make(chan struct{})
		g.Add(
			func() error {
				select {
				case <-signalCtx.Done():
				case <-stop:
					return nil
				}
				// Restore default handling so a second signal kills the process.
				signalCancel()
				h.cfg.Logger.Infof("Termination signal received, cancelling task")
				h.loop.Post(func() { h.session.Cancel() })
				<-stop
				return nil
			},
			func(_ error) {
				close(stop)
			},
		)
	}

	if h.cfg.CancelAfter > 0 {
		stop := make(chan struct{})
		g.Add(
			func() error {
				timer := time.NewTimer(h.cfg.CancelAfter)
				defer timer.Stop()
				select {
				case <-timer.C:
				case <-stop:
					return nil
				}
				h.cfg.Logger.Infof("Cancelling task after %s", h.cfg.CancelAfter)
				h.loop.Post(func() { h.session.Cancel() })
				<-stop
				return nil
			},
			func(_ error) {
				close(stop)
			},
		)
	}

	if h.cfg.RebindEvery > 0 {
		stop := make(chan struct{})
		g.Add(
			func() error {
				ticker := time.NewTicker(h.cfg.RebindEvery)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						h.loop.Post(h.attach)
					case <-stop:
						return nil
					}
				}
			},
			func(_ error) {
				close(stop)
			},
		)
	}

	return g.Run()
}

// attach replaces the current display with a new one, like a screen being
// rebuilt. It runs on the loop goroutine.
func (h *headless) attach() {
	if h.reporter != nil {
		h.reporter.display.Stop()
	}
	if h.binding != nil {
		h.binding.Detach()
	}

	d := display.New(h.cfg.Out)
	r := &reporter{
		display:   d,
		logger:    h.cfg.Logger,
		sometimes: rate.Sometimes{First: 1, Interval: time.Second},
		done:      h.done,
	}

	h.binding = h.session.Attach(r)
	h.reporter = r

	gen := h.binding.Generation()
	d.SetScreen(gen)
	d.Restore(h.session.Snapshot())
	if gen > 1 {
		d.PrintAbove("Screen #%d attached", gen)
	}
	d.Start()

	h.cfg.Logger.WithValues(log.Kv{"screen": gen}).Debugf("Display attached")
}

func (h *headless) finish(o outcome) error {
	switch o.status {
	case task.StatusFailed:
		return fmt.Errorf("task failed: %w", o.err)
	case task.StatusCancelled:
		h.cfg.Logger.Infof("Task cancelled")
	default:
		h.cfg.Logger.Infof("Task completed")
	}
	return nil
}
