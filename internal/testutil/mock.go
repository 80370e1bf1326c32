// Package testutil provides testing utilities for the retain project.
package testutil

import (
	"context"
	"sync"

	"github.com/pablasso/retain/internal/task"
)

// QueueDispatcher is a task.Dispatcher that holds posted closures until the
// test runs them, so the test goroutine plays the UI goroutine.
type QueueDispatcher struct {
	mu  sync.Mutex
	fns []func()
}

// Post implements task.Dispatcher.
func (q *QueueDispatcher) Post(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fns = append(q.fns, fn)
}

// Take removes and returns the queued closures.
func (q *QueueDispatcher) Take() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	fns := q.fns
	q.fns = nil
	return fns
}

// Len returns the number of queued closures.
func (q *QueueDispatcher) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fns)
}

// Drain runs queued closures, including the ones they post, until the queue
// is empty.
func (q *QueueDispatcher) Drain() {
	for {
		fns := q.Take()
		if len(fns) == 0 {
			return
		}
		for _, fn := range fns {
			fn()
		}
	}
}

var _ task.Dispatcher = (*QueueDispatcher)(nil)

// Gate controls the pace of a task: each step waits for one release.
type Gate struct {
	release chan struct{}
	open    chan struct{}
	once    sync.Once
}

// NewGate creates a Gate.
func NewGate() *Gate {
	return &Gate{
		release: make(chan struct{}, 1024),
		open:    make(chan struct{}),
	}
}

// Release lets n more steps complete.
func (g *Gate) Release(n int) {
	for i := 0; i < n; i++ {
		g.release <- struct{}{}
	}
}

// Open lets every remaining step complete.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.open) })
}

// Step is a task.StepFunc that blocks until released or cancelled.
func (g *Gate) Step(ctx context.Context, _ int) error {
	select {
	case <-g.release:
		return nil
	case <-g.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Task returns a task factory whose steps wait on the gate.
func (g *Gate) Task(steps int) func() *task.Task {
	return func() *task.Task {
		return &task.Task{Steps: steps, Step: g.Step}
	}
}
