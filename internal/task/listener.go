package task

// Listener receives the lifecycle of a Runner's task. All methods are called
// on the dispatcher's goroutine.
type Listener interface {
	// OnStarted is called once a run has been accepted by Start.
	OnStarted()

	// OnProgress is called with a fraction in [0, 1).
	OnProgress(fraction float64)

	// OnCancelled is the terminal callback of a run stopped by Cancel.
	OnCancelled()

	// OnCompleted is the terminal callback of a run that finished every step.
	OnCompleted()

	// OnFailed is the terminal callback of a run whose step returned an error.
	OnFailed(err error)
}

// Funcs adapts a set of optional functions to Listener.
type Funcs struct {
	Started   func()
	Progress  func(fraction float64)
	Cancelled func()
	Completed func()
	Failed    func(err error)
}

func (f Funcs) OnStarted() {
	if f.Started != nil {
		f.Started()
	}
}

func (f Funcs) OnProgress(fraction float64) {
	if f.Progress != nil {
		f.Progress(fraction)
	}
}

func (f Funcs) OnCancelled() {
	if f.Cancelled != nil {
		f.Cancelled()
	}
}

func (f Funcs) OnCompleted() {
	if f.Completed != nil {
		f.Completed()
	}
}

func (f Funcs) OnFailed(err error) {
	if f.Failed != nil {
		f.Failed(err)
	}
}

var _ Listener = Funcs{}
