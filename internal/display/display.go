package display

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/pablasso/retain/internal/task"
)

// Status represents the current execution status.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

const (
	barWidth  = 20
	barFilled = "■"
	barEmpty  = "□"
)

// State holds the current display state.
type State struct {
	// Screen is the binding generation shown as a prefix, 0 hides it.
	Screen    int
	Fraction  float64
	Status    Status
	StartTime time.Time
	EndTime   time.Time
}

// Display manages the terminal status line. It implements task.Listener so a
// Runner can drive it directly.
type Display struct {
	mu       sync.Mutex
	writer   io.Writer
	state    State
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup // Ensures goroutine exits before Stop() returns
	active   bool
	lastLine string
	now      func() time.Time
}

var _ task.Listener = (*Display)(nil)

// New creates a new Display writing to the given writer.
func New(w io.Writer) *Display {
	return &Display{
		writer: w,
		now:    time.Now,
	}
}

// SetScreen sets the screen number shown before the bar.
func (d *Display) SetScreen(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Screen = n
}

// Restore seeds the display from a runner snapshot, so a display bound in the
// middle of a run starts from the last known fraction instead of zero.
func (d *Display) Restore(s task.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.Fraction = s.Fraction
	switch {
	case s.State == task.StateRunning:
		d.state.Status = StatusRunning
	case s.Outcome == task.StatusCompleted:
		d.state.Status = StatusCompleted
	case s.Outcome == task.StatusFailed:
		d.state.Status = StatusFailed
	case s.Outcome == task.StatusCancelled:
		d.state.Status = StatusCancelled
	default:
		d.state.Status = StatusIdle
	}
	// The elapsed clock restarts: a snapshot does not carry the run's start.
	d.state.StartTime = d.now()
	d.state.EndTime = time.Time{}
	if d.state.Status != StatusRunning {
		d.state.EndTime = d.state.StartTime
	}
}

// Start begins the display update loop. A stopped Display can be started
// again.
func (d *Display) Start() {
	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		return
	}
	d.active = true
	if d.state.StartTime.IsZero() {
		d.state.StartTime = d.now()
	}
	ticker := time.NewTicker(time.Second)
	done := make(chan struct{})
	d.ticker = ticker
	d.done = done
	d.wg.Add(1)
	d.mu.Unlock()

	go d.updateLoop(ticker, done)
}

// Stop halts the display update loop and clears the status line.
// Blocks until the update goroutine has exited to prevent race conditions.
func (d *Display) Stop() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	ticker, done := d.ticker, d.done
	d.mu.Unlock()

	ticker.Stop()
	close(done)
	d.wg.Wait()
	d.clearLine()
}

// State returns a copy of the current display state.
func (d *Display) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// OnStarted implements task.Listener.
func (d *Display) OnStarted() {
	d.mu.Lock()
	d.state.Status = StatusRunning
	d.state.Fraction = 0
	d.state.StartTime = d.now()
	d.state.EndTime = time.Time{}
	d.mu.Unlock()

	d.PrintAbove("Task started")
}

// OnProgress implements task.Listener.
func (d *Display) OnProgress(fraction float64) {
	d.mu.Lock()
	d.state.Fraction = fraction
	d.mu.Unlock()

	d.render()
}

// OnCancelled implements task.Listener.
func (d *Display) OnCancelled() {
	d.finish(StatusCancelled)
	d.PrintAbove("Task cancelled")
}

// OnCompleted implements task.Listener.
func (d *Display) OnCompleted() {
	d.mu.Lock()
	d.state.Fraction = 1
	d.mu.Unlock()

	d.finish(StatusCompleted)
	d.PrintAbove("Task completed")
}

// OnFailed implements task.Listener.
func (d *Display) OnFailed(err error) {
	d.finish(StatusFailed)
	d.PrintAbove("Task failed: %v", err)
}

func (d *Display) finish(status Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Status = status
	d.state.EndTime = d.now()
}

// updateLoop periodically renders the status line.
func (d *Display) updateLoop(ticker *time.Ticker, done <-chan struct{}) {
	defer d.wg.Done()
	d.render()
	for {
		select {
		case <-ticker.C:
			d.render()
		case <-done:
			return
		}
	}
}

// render draws the current status line.
func (d *Display) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := d.elapsed()
	line := d.formatLine(d.state, elapsed)

	// Only update if changed (reduces flicker)
	if line == d.lastLine {
		return
	}
	d.lastLine = line

	// Move to start of line, clear it, write new content
	fmt.Fprintf(d.writer, "\r\033[K%s", line)
}

func (d *Display) elapsed() time.Duration {
	if d.state.StartTime.IsZero() {
		return 0
	}
	end := d.state.EndTime
	if end.IsZero() {
		end = d.now()
	}
	return end.Sub(d.state.StartTime)
}

// formatLine creates the status line string.
func (d *Display) formatLine(state State, elapsed time.Duration) string {
	if state.Status == StatusIdle {
		return ""
	}

	line := fmt.Sprintf("%s %3d%% │ ⏱ %s │ %s",
		formatBar(state.Fraction, barWidth),
		percent(state.Fraction),
		formatDuration(elapsed),
		state.Status)

	if state.Screen > 0 {
		line = fmt.Sprintf("#%d %s", state.Screen, line)
	}
	return line
}

// clearLine clears the status line.
func (d *Display) clearLine() {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.writer, "\r\033[K")
	d.lastLine = ""
}

// PrintAbove prints a message above the status line.
// Use this for important messages that shouldn't be overwritten.
func (d *Display) PrintAbove(format string, args ...any) {
	d.mu.Lock()
	fmt.Fprintf(d.writer, "\r\033[K"+format+"\n", args...)
	d.lastLine = ""
	d.mu.Unlock()

	d.render()
}

func formatBar(fraction float64, width int) string {
	filled := int(math.Round(clamp(fraction) * float64(width)))
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled)
}

func percent(fraction float64) int {
	return int(math.Floor(clamp(fraction)*100 + 1e-9))
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
