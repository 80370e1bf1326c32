package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultSteps is the number of steps a task runs when none is configured.
	DefaultSteps = 100
	// DefaultInterval is the pause between steps when none is configured.
	DefaultInterval = 100 * time.Millisecond
)

// ErrStepFailed wraps every error that ends a run with StatusFailed.
var ErrStepFailed = errors.New("task step failed")

// Status is the terminal status of a run.
type Status int

const (
	// StatusPending means the run has not reached a terminal status yet.
	StatusPending Status = iota
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// StepFunc performs one unit of work. step is 0-based.
type StepFunc func(ctx context.Context, step int) error

// Task is a fixed number of steps reporting fractional progress.
type Task struct {
	Steps int
	Step  StepFunc
}

// New creates a Task whose steps each wait for interval.
func New(steps int, interval time.Duration) *Task {
	return &Task{
		Steps: steps,
		Step:  Sleep(interval),
	}
}

// Run executes the task. Before step i it checks ctx and, if it is done,
// returns StatusCancelled without reporting anything else. Otherwise it
// reports i/Steps and performs the step.
//
// A step error or panic ends the run with StatusFailed and an error wrapping
// ErrStepFailed.
func (t *Task) Run(ctx context.Context, report func(fraction float64)) (status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = StatusFailed
			err = fmt.Errorf("%w: panic: %v", ErrStepFailed, r)
		}
	}()

	for i := 0; i < t.Steps; i++ {
		if ctx.Err() != nil {
			return StatusCancelled, nil
		}

		if report != nil {
			report(float64(i) / float64(t.Steps))
		}

		if t.Step == nil {
			continue
		}
		if err := t.Step(ctx, i); err != nil {
			// A step aborted by cancellation is not a failure.
			if ctx.Err() != nil {
				return StatusCancelled, nil
			}
			return StatusFailed, fmt.Errorf("%w: step %d: %w", ErrStepFailed, i, err)
		}
	}

	// Cancelled during the last step still counts as cancelled.
	if ctx.Err() != nil {
		return StatusCancelled, nil
	}
	return StatusCompleted, nil
}

// Sleep returns a StepFunc that waits for d or until ctx is done.
func Sleep(d time.Duration) StepFunc {
	return func(ctx context.Context, _ int) error {
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		return nil
	}
}

// FailAt returns a StepFunc that runs next for every step except failStep,
// which returns an error instead.
func FailAt(failStep int, next StepFunc) StepFunc {
	return func(ctx context.Context, step int) error {
		if step == failStep {
			return fmt.Errorf("injected failure at step %d", step)
		}
		if next == nil {
			return nil
		}
		return next(ctx, step)
	}
}
