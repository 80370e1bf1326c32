package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pablasso/retain/internal/session"
	"github.com/pablasso/retain/internal/task"
	"github.com/pablasso/retain/internal/testutil"
)

type counter struct {
	started, progress, completed, cancelled int
}

func (c *counter) listener() task.Listener {
	return task.Funcs{
		Started:   func() { c.started++ },
		Progress:  func(float64) { c.progress++ },
		Completed: func() { c.completed++ },
		Cancelled: func() { c.cancelled++ },
	}
}

func newSession(t *testing.T, q *testutil.QueueDispatcher, steps int) *session.Session {
	t.Helper()
	return newSessionWithTask(t, q, func() *task.Task { return task.New(steps, 0) })
}

func newSessionWithTask(t *testing.T, q *testutil.QueueDispatcher, newTask func() *task.Task) *session.Session {
	t.Helper()
	s, err := session.New(session.Config{
		Dispatcher: q,
		NewTask:    newTask,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
		s.Wait()
	})
	return s
}

func TestNewRequiresDispatcher(t *testing.T) {
	_, err := session.New(session.Config{})
	assert.Error(t, err)
}

func TestAttachReplacesPreviousScreen(t *testing.T) {
	q := &testutil.QueueDispatcher{}
	gate := testutil.NewGate()
	s := newSessionWithTask(t, q, gate.Task(4))

	var first, second counter
	b1 := s.Attach(first.listener())
	require.True(t, s.Start())
	q.Drain()
	assert.Equal(t, 1, first.started)

	b2 := s.Attach(second.listener())
	assert.Equal(t, 1, b1.Generation())
	assert.Equal(t, 2, b2.Generation())
	assert.Equal(t, 2, s.Generation())
	assert.False(t, b1.Attached())
	assert.True(t, b2.Attached())

	// The old screen detaching late must not unbind its replacement.
	b1.Detach()
	assert.True(t, b2.Attached())

	gate.Release(4)
	s.Wait()
	q.Drain()
	assert.Zero(t, first.completed)
	assert.Equal(t, 1, second.completed)
	assert.False(t, s.IsRunning())
}

func TestDetachDropsEvents(t *testing.T) {
	q := &testutil.QueueDispatcher{}
	s := newSession(t, q, 3)

	var c counter
	b := s.Attach(c.listener())
	require.True(t, s.Start())
	b.Detach()
	assert.False(t, b.Attached())

	s.Wait()
	q.Drain()
	assert.Zero(t, c.started)
	assert.Zero(t, c.completed)
	assert.Equal(t, task.StatusCompleted, s.Snapshot().Outcome)
}

func TestToggle(t *testing.T) {
	q := &testutil.QueueDispatcher{}
	s := newSession(t, q, 1000)

	var c counter
	s.Attach(c.listener())

	s.Toggle()
	assert.True(t, s.IsRunning())
	s.Toggle()
	assert.False(t, s.IsRunning())

	s.Wait()
	q.Drain()
	assert.Equal(t, 1, c.started)
	assert.Equal(t, 1, c.cancelled)
	assert.Zero(t, c.completed)
}

func TestCloseCancelsTask(t *testing.T) {
	q := &testutil.QueueDispatcher{}
	s, err := session.New(session.Config{
		Dispatcher: q,
		NewTask:    func() *task.Task { return task.New(1000, 1) },
	})
	require.NoError(t, err)

	var c counter
	b := s.Attach(c.listener())
	require.True(t, s.Start())

	s.Close()
	s.Close()
	s.Wait()
	q.Drain()

	assert.False(t, s.IsRunning())
	assert.False(t, s.Start())
	assert.False(t, b.Attached())
	assert.Zero(t, c.completed)

	late := s.Attach(c.listener())
	assert.False(t, late.Attached())
}
