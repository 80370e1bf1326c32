// Package msgs defines shared message types for the TUI.
package msgs

// DispatchMsg carries a closure posted by the task runner. The root model
// runs Fn from Update, which makes the Bubble Tea update loop the goroutine
// that owns every listener callback.
type DispatchMsg struct {
	Fn func()
}

// RecreateScreenMsg asks the root model to discard the current screen and
// build a new one bound to the same session.
type RecreateScreenMsg struct {
	Reason string
}
