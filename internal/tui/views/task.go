package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pablasso/retain/internal/task"
	"github.com/pablasso/retain/internal/tui/components"
	"github.com/pablasso/retain/internal/tui/styles"
)

// screenState represents what the screen shows for the task.
type screenState int

const (
	stateIdle screenState = iota
	stateRunning
	stateCompleted
	stateCancelled
	stateFailed
)

func (s screenState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateRunning:
		return "Running"
	case stateCompleted:
		return "Completed"
	case stateCancelled:
		return "Cancelled"
	case stateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

const (
	maxActivities = 6
	maxBarWidth   = 60
	minBarWidth   = 10
)

// ActivityEntry is a single line in the screen's event timeline.
type ActivityEntry struct {
	Text      string
	Timestamp time.Time
}

// TaskOptions configures a new TaskModel.
type TaskOptions struct {
	// Title describes the task pacing, e.g. "medium: 100 steps × 100ms".
	Title string
	// Running reports whether the session owns a running task. It drives the
	// start/cancel label and is read on every render.
	Running func() bool
	// Now is the clock, time.Now when nil.
	Now func() time.Time
}

// TaskModel is a disposable screen for the session's task. It implements
// task.Listener; every callback arrives through the Bubble Tea update loop.
// A TaskModel carries no state worth keeping: when it is recreated the new
// one restores from the runner snapshot.
type TaskModel struct {
	screen   int
	title    string
	state    screenState
	fraction float64
	err      error
	restored bool

	startTime time.Time
	endTime   time.Time

	activities []ActivityEntry

	spinner spinner.Model
	bar     progress.Model

	running func() bool
	now     func() time.Time

	width  int
	height int
}

var _ task.Listener = (*TaskModel)(nil)

// NewTaskModel creates a screen in the idle state.
func NewTaskModel(opts TaskOptions) *TaskModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	bar := progress.New(progress.WithGradient(styles.GradientStart, styles.GradientEnd))
	bar.Width = maxBarWidth

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	running := opts.Running
	if running == nil {
		running = func() bool { return false }
	}

	return &TaskModel{
		title:   opts.Title,
		spinner: s,
		bar:     bar,
		running: running,
		now:     now,
	}
}

// Init implements tea.Model.
func (m *TaskModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// SetScreen records the binding generation this screen belongs to.
func (m *TaskModel) SetScreen(n int) {
	m.screen = n
}

// Screen returns the binding generation.
func (m *TaskModel) Screen() int {
	return m.screen
}

// Restore draws the screen from a runner snapshot. It is used once, right
// after the screen is bound, so any event queued behind it still applies.
func (m *TaskModel) Restore(s task.Snapshot) {
	m.fraction = s.Fraction
	switch {
	case s.State == task.StateRunning:
		m.state = stateRunning
	case s.Outcome == task.StatusCompleted:
		m.state = stateCompleted
	case s.Outcome == task.StatusCancelled:
		m.state = stateCancelled
	case s.Outcome == task.StatusFailed:
		m.state = stateFailed
	default:
		m.state = stateIdle
	}

	if s.RunID == "" {
		return
	}
	m.restored = true
	m.startTime = m.now()
	if m.state != stateRunning {
		m.endTime = m.startTime
	}
	m.addActivity(fmt.Sprintf("Restored run %s at %d%%", shortID(s.RunID), percent(s.Fraction)))
}

// OnStarted implements task.Listener.
func (m *TaskModel) OnStarted() {
	m.state = stateRunning
	m.fraction = 0
	m.err = nil
	m.restored = false
	m.startTime = m.now()
	m.endTime = time.Time{}
	m.addActivity("Started")
}

// OnProgress implements task.Listener.
func (m *TaskModel) OnProgress(fraction float64) {
	m.fraction = fraction
}

// OnCancelled implements task.Listener.
func (m *TaskModel) OnCancelled() {
	m.finish(stateCancelled)
	m.addActivity(fmt.Sprintf("Cancelled at %d%%", percent(m.fraction)))
}

// OnCompleted implements task.Listener.
func (m *TaskModel) OnCompleted() {
	m.fraction = 1
	m.finish(stateCompleted)
	m.addActivity("Completed")
}

// OnFailed implements task.Listener.
func (m *TaskModel) OnFailed(err error) {
	m.err = err
	m.finish(stateFailed)
	m.addActivity(fmt.Sprintf("Failed: %v", err))
}

func (m *TaskModel) finish(state screenState) {
	m.state = state
	m.endTime = m.now()
}

// Update implements tea.Model for the messages the screen owns.
func (m *TaskModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return nil

	case spinner.TickMsg:
		// Keep ticking while idle too: ticks drive the elapsed time refresh
		// and a stopped spinner cannot be restarted from a listener callback.
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd
	}
	return nil
}

// View implements tea.Model.
func (m *TaskModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := styles.TitleStyle.Render("Retained task")
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, title))
	b.WriteString("\n")

	panel := styles.BoxStyle.Width(m.panelWidth()).Render(m.renderPanel())
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, panel))
	b.WriteString("\n")

	// Fill remaining space
	lines := strings.Count(b.String(), "\n") + 1
	remainingLines := m.height - lines
	if remainingLines > 0 {
		b.WriteString(strings.Repeat("\n", remainingLines))
	}

	label := fmt.Sprintf("screen #%d", m.screen)
	b.WriteString(components.NewStatusBar(label).Render(m.width, m.hints()))

	return b.String()
}

func (m *TaskModel) renderPanel() string {
	var lines []string

	if m.title != "" {
		lines = append(lines, styles.SubtleStyle.Render(m.title), "")
	}

	lines = append(lines, m.bar.ViewAs(m.fraction), "")
	lines = append(lines, m.renderStatus())

	if m.err != nil {
		lines = append(lines, styles.ErrorStyle.Render(m.err.Error()))
	}

	if len(m.activities) > 0 {
		lines = append(lines, "", styles.SubtleStyle.Render("Activity:"))
		for _, a := range m.activities {
			lines = append(lines, fmt.Sprintf("%s %s",
				styles.SubtleStyle.Render(a.Timestamp.Format("15:04:05")), a.Text))
		}
	}

	return strings.Join(lines, "\n")
}

func (m *TaskModel) renderStatus() string {
	elapsed := formatDuration(m.elapsed())
	if m.restored {
		elapsed += " since restore"
	}

	var indicator string
	switch m.state {
	case stateRunning:
		indicator = m.spinner.View()
	case stateCompleted:
		indicator = styles.SuccessStyle.Render("✓")
	case stateCancelled:
		indicator = styles.WarningStyle.Render("■")
	case stateFailed:
		indicator = styles.ErrorStyle.Render("✗")
	default:
		indicator = styles.SubtleStyle.Render("○")
	}

	return fmt.Sprintf("%s %s │ ⏱ %s", indicator, m.state, elapsed)
}

func (m *TaskModel) hints() []components.Hint {
	action := "Start"
	if m.running() {
		action = "Cancel"
	}
	return []components.Hint{
		{Key: "s", Desc: action},
		{Key: "r", Desc: "Recreate screen"},
		{Key: "q", Desc: "Quit"},
	}
}

func (m *TaskModel) panelWidth() int {
	w := m.bar.Width + 6
	if w > m.width-2 {
		w = m.width - 2
	}
	return w
}

func (m *TaskModel) elapsed() time.Duration {
	if m.startTime.IsZero() {
		return 0
	}
	end := m.endTime
	if end.IsZero() {
		end = m.now()
	}
	return end.Sub(m.startTime)
}

func (m *TaskModel) addActivity(text string) {
	m.activities = append(m.activities, ActivityEntry{Text: text, Timestamp: m.now()})
	if len(m.activities) > maxActivities {
		m.activities = m.activities[len(m.activities)-maxActivities:]
	}
}

// SetSize updates the model dimensions.
func (m *TaskModel) SetSize(width, height int) {
	m.width = width
	m.height = height

	barWidth := width - 12
	if barWidth > maxBarWidth {
		barWidth = maxBarWidth
	}
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}
	m.bar.Width = barWidth
}

// State returns the current screen state name.
func (m *TaskModel) State() string {
	return m.state.String()
}

// Fraction returns the fraction the progress bar shows.
func (m *TaskModel) Fraction() float64 {
	return m.fraction
}

// Activities returns the event timeline, oldest first.
func (m *TaskModel) Activities() []ActivityEntry {
	return m.activities
}

func percent(fraction float64) int {
	p := int(fraction*100 + 1e-9)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

// formatDuration formats a duration as MM:SS or HH:MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}
