// Package task runs one cancellable background task at a time and relays its
// lifecycle to whichever listener is currently bound.
//
// A Runner is meant to outlive the screens that display it. Screens come and
// go, calling Bind when they appear and Unbind when they are torn down, while
// the task keeps running. Every listener callback is delivered through a
// Dispatcher, which stands for the goroutine that owns the UI: listeners never
// see a callback from the task goroutine itself.
//
// Per run the callbacks arrive in this order:
//
//	OnStarted, OnProgress(0/N), ..., OnProgress(k/N), <terminal>
//
// where the terminal callback is exactly one of OnCompleted, OnCancelled or
// OnFailed and nothing for that run follows it. Callbacks produced while no
// listener is bound are dropped.
package task
