// Package session holds the long-lived side of a screen: one task runner that
// survives while the screens displaying it are torn down and rebuilt.
package session

import (
	"fmt"
	"sync"

	"github.com/pablasso/retain/internal/log"
	"github.com/pablasso/retain/internal/task"
)

// Config is the configuration of a Session.
type Config struct {
	// Dispatcher delivers task callbacks on the UI goroutine. Required.
	Dispatcher task.Dispatcher
	NewTask    func() *task.Task
	Logger     log.Logger
}

func (c *Config) defaults() error {
	if c.Dispatcher == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "session.Session"})
	return nil
}

// Session owns a task runner for as long as the host keeps it open.
type Session struct {
	runner *task.Runner
	logger log.Logger

	mu         sync.Mutex
	generation int
	bound      *Binding
	closed     bool
}

// Binding is the attachment of one screen to a Session.
type Binding struct {
	session    *Session
	generation int
}

// New creates a Session.
func New(cfg Config) (*Session, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	runner, err := task.NewRunner(task.RunnerConfig{
		Dispatcher: cfg.Dispatcher,
		NewTask:    cfg.NewTask,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create runner: %w", err)
	}

	cfg.Logger.Debugf("Session created")

	return &Session{
		runner: runner,
		logger: cfg.Logger,
	}, nil
}

// Attach binds a new screen's listener, replacing the previous screen.
func (s *Session) Attach(l task.Listener) *Binding {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	b := &Binding{session: s, generation: s.generation}
	if s.closed {
		return b
	}
	s.bound = b
	s.runner.Bind(l)

	s.logger.WithValues(log.Kv{"screen": b.generation}).Debugf("Screen attached (running: %t)", s.runner.IsRunning())
	return b
}

// Detach unbinds the screen if it is still the attached one. A screen that was
// already replaced can't unbind its successor.
func (b *Binding) Detach() {
	s := b.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound != b {
		return
	}
	s.bound = nil
	s.runner.Unbind()
	s.logger.WithValues(log.Kv{"screen": b.generation}).Debugf("Screen detached")
}

// Generation returns the number of this screen, starting at 1.
func (b *Binding) Generation() int {
	return b.generation
}

// Attached reports whether this binding is the current one.
func (b *Binding) Attached() bool {
	s := b.session
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound == b
}

// Start starts the task.
func (s *Session) Start() bool { return s.runner.Start() }

// Cancel cancels the task.
func (s *Session) Cancel() bool { return s.runner.Cancel() }

// IsRunning reports whether the task is running.
func (s *Session) IsRunning() bool { return s.runner.IsRunning() }

// Snapshot returns the runner state.
func (s *Session) Snapshot() task.Snapshot { return s.runner.Snapshot() }

// Toggle cancels a running task or starts a new one, like the single
// start/cancel button of the screen.
func (s *Session) Toggle() {
	if s.runner.IsRunning() {
		s.runner.Cancel()
		return
	}
	s.runner.Start()
}

// Generation returns how many screens have attached so far.
func (s *Session) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Close ends the session for good, cancelling the task if it is running.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.bound = nil
	s.runner.Close()
	s.logger.Debugf("Session closed")
}

// Wait blocks until the task goroutine, if any, has returned.
func (s *Session) Wait() {
	s.runner.Wait()
}
