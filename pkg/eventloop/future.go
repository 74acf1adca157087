package eventloop

import (
	"context"
	"sync"
	"time"
)

// Future states. Transitions are pending -> running -> done, with cancelled
// reachable from pending and running.
const (
	statePending = iota
	stateRunning
	stateDone
	stateCancelled
)

// Future is the caller-facing handle for one scheduled unit of work.
//
// It supports cancellation, completion polling, blocking and timed result
// retrieval, delay-based ordering, and an open-ended annotation store that is
// independent of the task's completion state.
type Future struct {
	loop *loop

	mu        sync.Mutex
	state     int
	value     interface{}
	err       error
	startedAt time.Time
	deadline  time.Time          // next scheduled run time; zero for immediate work
	timer     *time.Timer        // pending delay timer, one-shot work only
	cancelRun context.CancelFunc // set while the task is running
	stop      chan struct{}      // closed on cancel; stops periodic runners
	child     *Future            // current run of a periodic registration

	done chan struct{}

	attrsMu sync.RWMutex
	attrs   map[string]interface{}
}

func newFuture(l *loop) *Future {
	return &Future{
		loop: l,
		done: make(chan struct{}),
		stop: make(chan struct{}),
	}
}

// Delay returns the time remaining until the task's next scheduled run.
// It is zero or negative for work that is due, already running, or finished.
// For periodic registrations it reflects the next planned execution.
func (f *Future) Delay() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deadline.IsZero() {
		return 0
	}
	return time.Until(f.deadline)
}

// Less reports whether f is due before other, for use in delay-ordered queues.
func (f *Future) Less(other *Future) bool {
	return f.Delay() < other.Delay()
}

// Done reports whether the task has reached a terminal state, including
// cancellation.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Cancelled reports whether the task was cancelled before completing.
func (f *Future) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == stateCancelled
}

// Cancel attempts to cancel the task and reports whether cancellation took
// effect. A task that has not started yet is prevented from ever running.
// A running task is interrupted only when interrupt is true and the task
// honors context cancellation; without interrupt, Cancel reports false for
// running tasks. Cancelling completed work reports false.
func (f *Future) Cancel(interrupt bool) bool {
	f.mu.Lock()
	switch f.state {
	case statePending:
		f.state = stateCancelled
		f.err = ErrCancelled
		if f.timer != nil {
			f.timer.Stop()
			f.timer = nil
		}
		child := f.child
		f.child = nil
		close(f.stop)
		close(f.done)
		f.mu.Unlock()

		if f.loop != nil {
			f.loop.forget(f)
		}
		if child != nil {
			child.Cancel(interrupt)
		}
		return true

	case stateRunning:
		if !interrupt {
			f.mu.Unlock()
			return false
		}
		f.state = stateCancelled
		f.err = ErrCancelled
		cancel := f.cancelRun
		close(f.stop)
		close(f.done)
		f.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if f.loop != nil {
			f.loop.forget(f)
		}
		return true

	default:
		f.mu.Unlock()
		return false
	}
}

// Get blocks until the task completes and returns its value. Execution
// failures surface as a *ExecutionError wrapping the original cause;
// cancellation surfaces as ErrCancelled.
func (f *Future) Get() (interface{}, error) {
	<-f.done
	return f.result()
}

// GetContext is like Get but aborts the wait when ctx is done. The task
// itself is unaffected by ctx.
func (f *Future) GetContext(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetTimeout is like Get but gives up after timeout, returning
// ErrWaitTimeout. A timed-out wait says nothing about the task's fate.
func (f *Future) GetTimeout(timeout time.Duration) (interface{}, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.result()
	case <-timer.C:
		return nil, ErrWaitTimeout
	}
}

func (f *Future) result() (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.value, nil
}

// SetAttr stores a caller annotation on the handle. Annotations never
// participate in the task's result and may be written at any time.
func (f *Future) SetAttr(key string, value interface{}) {
	f.attrsMu.Lock()
	defer f.attrsMu.Unlock()
	if f.attrs == nil {
		f.attrs = make(map[string]interface{})
	}
	f.attrs[key] = value
}

// Attr returns the annotation stored under key.
func (f *Future) Attr(key string) (interface{}, bool) {
	f.attrsMu.RLock()
	defer f.attrsMu.RUnlock()
	v, ok := f.attrs[key]
	return v, ok
}

// RemoveAttr deletes the annotation stored under key.
func (f *Future) RemoveAttr(key string) {
	f.attrsMu.Lock()
	defer f.attrsMu.Unlock()
	delete(f.attrs, key)
}

// Attrs returns a snapshot of all annotations on the handle.
func (f *Future) Attrs() map[string]interface{} {
	f.attrsMu.RLock()
	defer f.attrsMu.RUnlock()
	out := make(map[string]interface{}, len(f.attrs))
	for k, v := range f.attrs {
		out[k] = v
	}
	return out
}

// tryStart moves the future from pending to running and installs the cancel
// function for the run. It reports false if the future was cancelled before
// a worker picked it up.
func (f *Future) tryStart(cancel context.CancelFunc) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != statePending {
		return false
	}
	f.state = stateRunning
	f.cancelRun = cancel
	f.startedAt = time.Now()
	return true
}

// complete records the task's outcome unless the future was already
// cancelled. It reports whether the outcome was recorded.
func (f *Future) complete(value interface{}, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == stateCancelled || f.state == stateDone {
		return false
	}
	f.state = stateDone
	f.value = value
	f.err = err
	f.cancelRun = nil
	close(f.done)
	return true
}

func (f *Future) setDeadline(t time.Time) {
	f.mu.Lock()
	f.deadline = t
	f.mu.Unlock()
}

func (f *Future) setChild(child *Future) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != statePending {
		return false
	}
	f.child = child
	return true
}

func (f *Future) started() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startedAt, !f.startedAt.IsZero()
}
