package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pablasso/retain/internal/log"
	"github.com/pablasso/retain/internal/session"
	"github.com/pablasso/retain/internal/task"
	"github.com/pablasso/retain/internal/tui/msgs"
	"github.com/pablasso/retain/internal/tui/styles"
	"github.com/pablasso/retain/internal/tui/views"
)

// Minimum terminal dimensions for the screen to render.
const (
	MinTerminalWidth  = 40
	MinTerminalHeight = 12
)

// Model is the root Bubble Tea model. It owns the session for the lifetime
// of the program and a disposable screen bound to it.
type Model struct {
	session *session.Session
	binding *session.Binding
	screen  *views.TaskModel

	title     string
	autoStart bool
	logger    log.Logger
	now       func() time.Time

	width  int
	height int
}

// NewModel creates the root model and its first screen.
func NewModel(sess *session.Session, opts Options) Model {
	opts.defaults()

	m := Model{
		session:   sess,
		title:     opts.title(),
		autoStart: opts.AutoStart,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	m.recreate("initial")
	return m
}

// Run starts the TUI application and blocks until the user quits.
func Run(opts Options) error {
	opts.defaults()

	loop := task.NewLoop()
	dispatcher := newProgramDispatcher(loop)

	sess, err := session.New(session.Config{
		Dispatcher: dispatcher,
		NewTask:    opts.Config.TaskFactory(),
		Logger:     opts.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create session: %w", err)
	}

	p := tea.NewProgram(NewModel(sess, opts), tea.WithAltScreen())
	dispatcher.bind(p.Send)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(context.Background())
	}()

	_, err = p.Run()

	// Quitting closes the session from Update; this covers a program killed
	// by a signal or an error.
	sess.Close()
	sess.Wait()
	loop.Close()
	<-loopDone

	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.autoStart {
		m.session.Start()
	}
	return m.screen.Init()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case msgs.DispatchMsg:
		if msg.Fn != nil {
			msg.Fn()
		}
		return m, nil

	case tea.WindowSizeMsg:
		// The first size arrives right after start; later ones are resizes,
		// which rebuild the screen.
		first := m.width == 0 && m.height == 0
		m.width = msg.Width
		m.height = msg.Height
		if first {
			m.screen.SetSize(m.width, m.height)
			return m, nil
		}
		return m, m.recreate("resize")

	case msgs.RecreateScreenMsg:
		return m, m.recreate(msg.Reason)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.binding.Detach()
			m.session.Close()
			return m, tea.Quit
		case "s", "enter":
			m.session.Toggle()
			return m, nil
		case "r":
			return m, m.recreate("key")
		}
		return m, nil
	}

	return m, m.screen.Update(msg)
}

// recreate discards the current screen and binds a new one to the session.
// Binding happens before the snapshot is read: both run on the update loop,
// so every event after the snapshot is still delivered to the new screen.
func (m *Model) recreate(reason string) tea.Cmd {
	if m.binding != nil {
		m.binding.Detach()
	}

	screen := views.NewTaskModel(views.TaskOptions{
		Title:   m.title,
		Running: m.session.IsRunning,
		Now:     m.now,
	})
	screen.SetSize(m.width, m.height)

	m.binding = m.session.Attach(screen)
	screen.SetScreen(m.binding.Generation())
	screen.Restore(m.session.Snapshot())
	m.screen = screen

	m.logger.WithValues(log.Kv{
		"screen": m.binding.Generation(),
		"reason": reason,
	}).Debugf("Screen created")

	return screen.Init()
}

// Screen returns the current screen.
func (m Model) Screen() *views.TaskModel {
	return m.screen
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width < MinTerminalWidth || m.height < MinTerminalHeight {
		return m.renderTerminalTooSmall()
	}
	return m.screen.View()
}

func (m Model) renderTerminalTooSmall() string {
	var b strings.Builder

	b.WriteString(styles.ErrorStyle.Render("Terminal too small"))
	b.WriteString("\n\n")
	b.WriteString(styles.SubtleStyle.Render(fmt.Sprintf("Minimum: %dx%d", MinTerminalWidth, MinTerminalHeight)))
	b.WriteString("\n")
	b.WriteString(styles.SubtleStyle.Render(fmt.Sprintf("Current: %dx%d", m.width, m.height)))

	if m.width <= 0 || m.height <= 0 {
		return b.String()
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
}
