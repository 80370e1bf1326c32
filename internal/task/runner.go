package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/pablasso/retain/internal/log"
)

// State is the state of a Runner.
type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// RunnerConfig is the configuration of a Runner.
type RunnerConfig struct {
	// Dispatcher delivers listener callbacks on the UI goroutine. Required.
	Dispatcher Dispatcher
	// NewTask builds the task for each run.
	NewTask func() *Task
	Logger  log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Dispatcher == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if c.NewTask == nil {
		c.NewTask = func() *Task { return New(DefaultSteps, DefaultInterval) }
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.Runner"})
	return nil
}

// Snapshot is a point in time view of a Runner.
type Snapshot struct {
	State State
	// RunID is the current run, or the last one when idle.
	RunID string
	// Fraction is the last progress delivered for RunID. It is 1 once the run
	// completes.
	Fraction float64
	// Outcome is the terminal status of RunID, StatusPending while running.
	Outcome Status
}

type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	// Guarded by Runner.mu.
	finished bool
	// cancelled is set once Cancel has claimed the run. Its terminal status
	// is Cancelled whatever the task goroutine returns.
	cancelled bool
	fraction  float64
	outcome   Status
}

// Runner owns at most one running task and relays its events to the bound
// listener. It is safe for concurrent use, but Start, Cancel and Bind are
// expected to be called from the dispatcher's goroutine.
type Runner struct {
	dispatcher Dispatcher
	newTask    func() *Task
	logger     log.Logger

	mu       sync.Mutex
	listener Listener
	current  *run
	last     *run
	closed   bool

	wg sync.WaitGroup
}

// NewRunner creates a new Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		dispatcher: cfg.Dispatcher,
		newTask:    cfg.NewTask,
		logger:     cfg.Logger,
	}, nil
}

// Start begins a new run. It returns false without doing anything when a run
// is already in progress or the runner is closed.
func (r *Runner) Start() bool {
	r.mu.Lock()
	if r.closed || r.current != nil {
		r.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	rn := &run{
		id:     ulid.Make().String(),
		ctx:    ctx,
		cancel: cancel,
	}
	r.current = rn
	r.last = rn
	r.wg.Add(1)
	r.mu.Unlock()

	r.logger.WithValues(log.Kv{"run": rn.id}).Infof("Task started")

	// Posted outside the lock: a dispatcher may run fn inline.
	r.dispatcher.Post(func() { r.deliverStarted(rn) })
	go r.execute(r.newTask(), rn)

	return true
}

// Cancel requests cancellation of the current run and returns immediately.
// The run's goroutine stops at its next step boundary. OnCancelled is queued
// right away so a Start that follows can't be reported before it. Returns
// false when idle.
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	rn := r.current
	if rn == nil {
		r.mu.Unlock()
		return false
	}
	rn.cancel()
	rn.cancelled = true
	rn.outcome = StatusCancelled
	r.current = nil
	r.mu.Unlock()

	r.logger.WithValues(log.Kv{"run": rn.id}).Infof("Task cancellation requested")
	r.dispatcher.Post(func() { r.finish(rn, StatusCancelled, nil) })

	return true
}

// IsRunning reports whether a run is in progress.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Bind makes l the receiver of every callback delivered from now on,
// replacing any previous listener.
func (r *Runner) Bind(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.listener = l
}

// Unbind removes the listener. Callbacks delivered while unbound are dropped.
func (r *Runner) Unbind() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = nil
}

// Listener returns the bound listener, nil when unbound.
func (r *Runner) Listener() Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listener
}

// Snapshot returns the current state of the runner.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{State: StateIdle}
	if r.current != nil {
		s.State = StateRunning
	}
	if r.last != nil {
		s.RunID = r.last.id
		s.Fraction = r.last.fraction
		s.Outcome = r.last.outcome
	}
	return s
}

// Close cancels the current run, if any, and unbinds the listener. Start is
// a no-op afterwards. Close does not wait for the run goroutine; use Wait.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.listener = nil

	if rn := r.current; rn != nil {
		rn.cancel()
		rn.finished = true
		rn.outcome = StatusCancelled
		r.current = nil
		r.logger.WithValues(log.Kv{"run": rn.id}).Infof("Task cancelled on close")
	}
}

// Wait blocks until every run goroutine has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(t *Task, rn *run) {
	defer r.wg.Done()

	logger := r.logger.WithValues(log.Kv{"run": rn.id})
	status, err := t.Run(rn.ctx, func(fraction float64) {
		r.dispatcher.Post(func() { r.deliverProgress(rn, fraction) })
	})

	switch status {
	case StatusFailed:
		logger.Errorf("Task failed: %v", err)
	default:
		logger.Debugf("Task returned: %s", status)
	}

	r.dispatcher.Post(func() { r.finish(rn, status, err) })
}

func (r *Runner) deliverStarted(rn *run) {
	r.mu.Lock()
	if rn.finished {
		r.mu.Unlock()
		return
	}
	l := r.listener
	r.mu.Unlock()

	if l != nil {
		l.OnStarted()
	}
}

func (r *Runner) deliverProgress(rn *run, fraction float64) {
	r.mu.Lock()
	// Progress reported before the run saw its cancellation is stale.
	if rn.finished || rn.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	rn.fraction = fraction
	l := r.listener
	r.mu.Unlock()

	if l != nil {
		l.OnProgress(fraction)
	}
}

func (r *Runner) finish(rn *run, status Status, err error) {
	r.mu.Lock()
	if rn.finished {
		r.mu.Unlock()
		return
	}
	// A run claimed by Cancel ends cancelled, even when the goroutine's own
	// terminal closure was queued first.
	if rn.cancelled {
		status = StatusCancelled
		err = nil
	}
	rn.finished = true
	rn.outcome = status
	if status == StatusCompleted {
		rn.fraction = 1
	}
	if r.current == rn {
		r.current = nil
	}
	l := r.listener
	r.mu.Unlock()

	rn.cancel()

	if l == nil {
		return
	}
	switch status {
	case StatusCompleted:
		l.OnCompleted()
	case StatusCancelled:
		l.OnCancelled()
	case StatusFailed:
		l.OnFailed(err)
	}
}
