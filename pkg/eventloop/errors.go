package eventloop

import (
	"fmt"

	commonerrors "github.com/vnykmshr/goloop/pkg/common/errors"
)

// Error kinds surfaced by loops and futures. All wrap the shared sentinels
// from pkg/common/errors so callers can classify with errors.Is.
var (
	// ErrRejected is returned when work is submitted to a loop that has
	// begun or completed shutdown.
	ErrRejected = fmt.Errorf("eventloop: submission rejected: %w", commonerrors.ErrClosed)

	// ErrCancelled is returned by Get when the underlying task was cancelled
	// before it produced a result.
	ErrCancelled = fmt.Errorf("eventloop: task cancelled: %w", commonerrors.ErrCancelled)

	// ErrWaitTimeout is returned by GetTimeout when the bounded wait elapsed
	// before the task completed.
	ErrWaitTimeout = fmt.Errorf("eventloop: wait timed out: %w", commonerrors.ErrTimeout)

	// ErrShutdownUnsupported is returned when a caller attempts to shut down
	// a protected global loop directly.
	ErrShutdownUnsupported = fmt.Errorf("eventloop: shared global loop cannot be shut down: %w", commonerrors.ErrUnsupported)
)

// ExecutionError is the single failure kind surfaced by Future.Get for work
// that failed inside the loop. The original failure is available via Unwrap.
type ExecutionError struct {
	// Loop is the name of the loop instance the task ran on.
	Loop string

	// Worker is the name of the worker that executed the task.
	Worker string

	// Cause is the error returned by the task, or a *PanicError if the
	// task panicked.
	Cause error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("eventloop: task failed on %s (%s): %v", e.Loop, e.Worker, e.Cause)
}

// Unwrap returns the originating failure.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// PanicError carries a recovered panic out of a task execution.
type PanicError struct {
	// Value is the value the task panicked with.
	Value interface{}

	// Stack is the stack trace captured at recovery.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
