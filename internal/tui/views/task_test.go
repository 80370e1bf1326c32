package views

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pablasso/retain/internal/task"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestModel(running bool) (*TaskModel, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewTaskModel(TaskOptions{
		Title:   "quick: 200 steps × 40ms",
		Running: func() bool { return running },
		Now:     clock.Now,
	})
	m.SetSize(80, 24)
	return m, clock
}

func TestNewTaskModel_Idle(t *testing.T) {
	m, _ := newTestModel(false)

	if m.State() != "Idle" {
		t.Errorf("State() = %q, want Idle", m.State())
	}
	if m.Fraction() != 0 {
		t.Errorf("Fraction() = %v, want 0", m.Fraction())
	}
	if len(m.Activities()) != 0 {
		t.Errorf("expected no activities, got %d", len(m.Activities()))
	}
	if m.Init() == nil {
		t.Error("expected Init to start the spinner")
	}
}

func TestTaskModel_ListenerLifecycle(t *testing.T) {
	m, clock := newTestModel(true)

	m.OnStarted()
	if m.State() != "Running" {
		t.Fatalf("State() = %q, want Running", m.State())
	}

	m.OnProgress(0.25)
	if m.Fraction() != 0.25 {
		t.Errorf("Fraction() = %v, want 0.25", m.Fraction())
	}

	clock.now = clock.now.Add(90 * time.Second)
	m.OnCompleted()

	if m.State() != "Completed" {
		t.Errorf("State() = %q, want Completed", m.State())
	}
	if m.Fraction() != 1 {
		t.Errorf("Fraction() = %v, want 1", m.Fraction())
	}

	// Elapsed freezes at the terminal event.
	clock.now = clock.now.Add(time.Hour)
	if got := m.elapsed(); got != 90*time.Second {
		t.Errorf("elapsed() = %v, want 1m30s", got)
	}

	acts := m.Activities()
	if len(acts) != 2 || acts[0].Text != "Started" || acts[1].Text != "Completed" {
		t.Errorf("unexpected activities: %+v", acts)
	}
}

func TestTaskModel_OnCancelled(t *testing.T) {
	m, _ := newTestModel(false)

	m.OnStarted()
	m.OnProgress(0.42)
	m.OnCancelled()

	if m.State() != "Cancelled" {
		t.Errorf("State() = %q, want Cancelled", m.State())
	}
	acts := m.Activities()
	if got := acts[len(acts)-1].Text; got != "Cancelled at 42%" {
		t.Errorf("last activity = %q, want %q", got, "Cancelled at 42%")
	}
}

func TestTaskModel_OnFailed(t *testing.T) {
	m, _ := newTestModel(false)

	m.OnStarted()
	m.OnFailed(errors.New("step 3: boom"))

	if m.State() != "Failed" {
		t.Errorf("State() = %q, want Failed", m.State())
	}
	view := m.View()
	if !strings.Contains(view, "step 3: boom") {
		t.Errorf("expected error in view, got:\n%s", view)
	}
}

func TestTaskModel_StartClearsPreviousRun(t *testing.T) {
	m, _ := newTestModel(false)

	m.OnStarted()
	m.OnFailed(errors.New("boom"))
	m.OnStarted()

	if m.err != nil {
		t.Errorf("expected error cleared, got %v", m.err)
	}
	if m.Fraction() != 0 {
		t.Errorf("Fraction() = %v, want 0", m.Fraction())
	}
}

func TestTaskModel_Restore(t *testing.T) {
	tests := []struct {
		name     string
		snapshot task.Snapshot
		state    string
		activity bool
	}{
		{
			name:     "never started",
			snapshot: task.Snapshot{State: task.StateIdle},
			state:    "Idle",
			activity: false,
		},
		{
			name:     "running",
			snapshot: task.Snapshot{State: task.StateRunning, RunID: "01JABCDEFGHJKMNPQRSTVWXYZ0", Fraction: 0.6},
			state:    "Running",
			activity: true,
		},
		{
			name:     "completed",
			snapshot: task.Snapshot{State: task.StateIdle, RunID: "01JABCDEFGHJKMNPQRSTVWXYZ0", Fraction: 1, Outcome: task.StatusCompleted},
			state:    "Completed",
			activity: true,
		},
		{
			name:     "cancelled",
			snapshot: task.Snapshot{State: task.StateIdle, RunID: "01JABCDEFGHJKMNPQRSTVWXYZ0", Fraction: 0.2, Outcome: task.StatusCancelled},
			state:    "Cancelled",
			activity: true,
		},
		{
			name:     "failed",
			snapshot: task.Snapshot{State: task.StateIdle, RunID: "01JABCDEFGHJKMNPQRSTVWXYZ0", Fraction: 0.5, Outcome: task.StatusFailed},
			state:    "Failed",
			activity: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel(false)
			m.Restore(tt.snapshot)

			if m.State() != tt.state {
				t.Errorf("State() = %q, want %q", m.State(), tt.state)
			}
			if m.Fraction() != tt.snapshot.Fraction {
				t.Errorf("Fraction() = %v, want %v", m.Fraction(), tt.snapshot.Fraction)
			}
			if got := len(m.Activities()) > 0; got != tt.activity {
				t.Errorf("has activity = %v, want %v", got, tt.activity)
			}
		})
	}
}

func TestTaskModel_RestoreActivityText(t *testing.T) {
	m, _ := newTestModel(true)
	m.Restore(task.Snapshot{State: task.StateRunning, RunID: "01JABCDEFGHJKMNPQRSTVWXYZ0", Fraction: 0.6})

	want := "Restored run STVWXYZ0 at 60%"
	if got := m.Activities()[0].Text; got != want {
		t.Errorf("activity = %q, want %q", got, want)
	}
	if !strings.Contains(m.View(), "since restore") {
		t.Error("expected elapsed to be marked as since restore")
	}
}

func TestTaskModel_ActivitiesBounded(t *testing.T) {
	m, _ := newTestModel(false)

	for i := 0; i < 10; i++ {
		m.OnStarted()
	}
	if got := len(m.Activities()); got != maxActivities {
		t.Errorf("len(Activities()) = %d, want %d", got, maxActivities)
	}
}

func TestTaskModel_View_Hints(t *testing.T) {
	tests := []struct {
		name    string
		running bool
		want    string
	}{
		{name: "idle offers start", running: false, want: "s Start"},
		{name: "running offers cancel", running: true, want: "s Cancel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel(tt.running)
			m.SetScreen(3)

			view := m.View()
			if !strings.Contains(view, tt.want) {
				t.Errorf("expected %q in view, got:\n%s", tt.want, view)
			}
			if !strings.Contains(view, "r Recreate screen") {
				t.Error("expected recreate hint")
			}
			if !strings.Contains(view, "screen #3") {
				t.Error("expected screen number")
			}
		})
	}
}

func TestTaskModel_View_ZeroSize(t *testing.T) {
	m := NewTaskModel(TaskOptions{})
	if view := m.View(); view != "" {
		t.Errorf("expected empty view before sizing, got %q", view)
	}
}

func TestTaskModel_SetSize_ClampsBar(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{width: 200, want: maxBarWidth},
		{width: 50, want: 38},
		{width: 15, want: minBarWidth},
	}

	for _, tt := range tests {
		m := NewTaskModel(TaskOptions{})
		m.SetSize(tt.width, 20)
		if m.bar.Width != tt.want {
			t.Errorf("SetSize(%d): bar width = %d, want %d", tt.width, m.bar.Width, tt.want)
		}
	}
}

func TestTaskModel_Update_WindowSize(t *testing.T) {
	m := NewTaskModel(TaskOptions{})
	if cmd := m.Update(tea.WindowSizeMsg{Width: 90, Height: 30}); cmd != nil {
		t.Error("expected no command for window size")
	}
	if m.width != 90 || m.height != 30 {
		t.Errorf("size = %dx%d, want 90x30", m.width, m.height)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{45 * time.Second, "00:45"},
		{5*time.Minute + 30*time.Second, "05:30"},
		{2*time.Hour + 34*time.Minute + 56*time.Second, "02:34:56"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
