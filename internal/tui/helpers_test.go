package tui

import (
	"math"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pablasso/retain/internal/config"
	"github.com/pablasso/retain/internal/session"
	"github.com/pablasso/retain/internal/testutil"
	"github.com/pablasso/retain/internal/tui/msgs"
)

const testTimeout = 5 * time.Second

// harness plays the Bubble Tea program: queued runner closures only reach the
// model when pump feeds them to Update.
type harness struct {
	t       *testing.T
	queue   *testutil.QueueDispatcher
	gate    *testutil.Gate
	session *session.Session
	model   Model
}

func newHarness(t *testing.T, steps int) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		queue: &testutil.QueueDispatcher{},
		gate:  testutil.NewGate(),
	}

	sess, err := session.New(session.Config{
		Dispatcher: h.queue,
		NewTask:    h.gate.Task(steps),
	})
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	h.session = sess
	t.Cleanup(func() {
		sess.Close()
		sess.Wait()
	})

	h.model = NewModel(sess, Options{Config: config.Default()})
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func (h *harness) key(k string) tea.Cmd {
	switch k {
	case "enter":
		return h.update(tea.KeyMsg{Type: tea.KeyEnter})
	case "ctrl+c":
		return h.update(tea.KeyMsg{Type: tea.KeyCtrlC})
	}
	return h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
}

func (h *harness) releaseSteps(n int) {
	h.gate.Release(n)
}

// pump feeds posted closures to Update until cond holds.
func (h *harness) pump(cond func() bool) {
	h.t.Helper()

	deadline := time.Now().Add(testTimeout)
	for {
		for _, fn := range h.queue.Take() {
			h.update(msgs.DispatchMsg{Fn: fn})
		}
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("condition not met within %v", testTimeout)
		}
		time.Sleep(time.Millisecond)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
