package task_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pablasso/retain/internal/task"
)

const testTimeout = 5 * time.Second

type event struct {
	kind     string
	fraction float64
	err      error
}

// recorder is a Listener that keeps every callback it receives.
type recorder struct {
	mu       sync.Mutex
	events   []event
	terminal chan struct{}
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan struct{}, 16)}
}

func (r *recorder) add(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) OnStarted()                  { r.add(event{kind: "started"}) }
func (r *recorder) OnProgress(fraction float64) { r.add(event{kind: "progress", fraction: fraction}) }

func (r *recorder) OnCancelled() {
	r.add(event{kind: "cancelled"})
	r.terminal <- struct{}{}
}

func (r *recorder) OnCompleted() {
	r.add(event{kind: "completed"})
	r.terminal <- struct{}{}
}

func (r *recorder) OnFailed(err error) {
	r.add(event{kind: "failed", err: err})
	r.terminal <- struct{}{}
}

func (r *recorder) Events() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, e := range r.Events() {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) kinds() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.kind)
	}
	return out
}

func (r *recorder) waitTerminal(t *testing.T) {
	t.Helper()
	select {
	case <-r.terminal:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for terminal event, got %v", r.kinds())
	}
}

func startLoop(t *testing.T) *task.Loop {
	t.Helper()

	l := task.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		l.Close()
		cancel()
		<-done
	})
	return l
}

// onLoop runs fn on the loop goroutine and waits for it, which also flushes
// everything posted before it.
func onLoop(t *testing.T, l *task.Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for loop")
	}
}

func waitDone(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatalf("timed out")
	}
}
