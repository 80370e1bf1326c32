package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pablasso/retain/internal/task"
	"github.com/pablasso/retain/internal/tui/msgs"
)

// programDispatcher delivers runner callbacks through the Bubble Tea update
// loop. Program.Send blocks until Update receives the message, so sends are
// pumped from a task.Loop: Post never blocks the caller and order is kept.
type programDispatcher struct {
	loop *task.Loop

	mu   sync.Mutex
	send func(tea.Msg)
}

func newProgramDispatcher(loop *task.Loop) *programDispatcher {
	return &programDispatcher{loop: loop}
}

// bind sets the program messages are sent to. Closures posted earlier wait
// in the loop until it runs.
func (d *programDispatcher) bind(send func(tea.Msg)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.send = send
}

// Post implements task.Dispatcher.
func (d *programDispatcher) Post(fn func()) {
	d.loop.Post(func() {
		d.mu.Lock()
		send := d.send
		d.mu.Unlock()

		if send != nil {
			send(msgs.DispatchMsg{Fn: fn})
		}
	})
}

var _ task.Dispatcher = (*programDispatcher)(nil)
