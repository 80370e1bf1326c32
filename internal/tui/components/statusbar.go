package components

import (
	"strings"

	"github.com/pablasso/retain/internal/tui/styles"
)

// Hint is a key binding shown in the status bar.
type Hint struct {
	Key  string
	Desc string
}

func (h Hint) String() string {
	if h.Key == "" {
		return h.Desc
	}
	return h.Key + " " + h.Desc
}

// StatusBar renders a bottom help bar showing contextual key hints, with an
// optional label aligned to the right.
type StatusBar struct {
	Label string
}

// NewStatusBar creates a new StatusBar instance.
func NewStatusBar(label string) StatusBar {
	return StatusBar{Label: label}
}

// Render returns the status bar string for the given width and hints.
// Hints are joined with " • " and the label is pushed to the right edge when
// it fits.
func (s StatusBar) Render(width int, hints []Hint) string {
	items := make([]string, 0, len(hints))
	for _, h := range hints {
		items = append(items, h.String())
	}
	content := strings.Join(items, " • ")

	if s.Label != "" {
		gap := width - len([]rune(content)) - len([]rune(s.Label))
		if gap < 1 {
			gap = 1
		}
		content += strings.Repeat(" ", gap) + s.Label
	}

	return styles.StatusBarStyle.Width(width).Render(content)
}
