package eventloop

import (
	"context"
	"errors"
	"time"
)

// ScheduleAtFixedRate runs the task after initialDelay, then every period
// measured from the start of each execution. Executions never overlap: when
// a run overruns the period, the next run starts immediately after it
// finishes and the rate clock restarts there. Missed ticks are not made up.
func (l *loop) ScheduleAtFixedRate(task Task, initialDelay, period time.Duration) (*Future, error) {
	if task == nil {
		return nil, errors.New("eventloop: task cannot be nil")
	}
	if period <= 0 {
		return nil, errors.New("eventloop: period must be positive")
	}
	return l.schedulePeriodic(task, initialDelay, func(start, end time.Time) time.Duration {
		return period - end.Sub(start)
	})
}

// ScheduleWithFixedDelay runs the task after initialDelay, then repeatedly
// with delay measured from the end of one execution to the start of the next.
func (l *loop) ScheduleWithFixedDelay(task Task, initialDelay, delay time.Duration) (*Future, error) {
	if task == nil {
		return nil, errors.New("eventloop: task cannot be nil")
	}
	if delay <= 0 {
		return nil, errors.New("eventloop: delay must be positive")
	}
	return l.schedulePeriodic(task, initialDelay, func(start, end time.Time) time.Duration {
		return delay
	})
}

// schedulePeriodic registers a repeating task. next computes the wait before
// the following run from the previous run's start and end times; negative
// results are clamped to zero.
func (l *loop) schedulePeriodic(task Task, initialDelay time.Duration, next func(start, end time.Time) time.Duration) (*Future, error) {
	if initialDelay < 0 {
		initialDelay = 0
	}

	f := newFuture(l)
	f.deadline = time.Now().Add(initialDelay)

	l.mu.Lock()
	if l.state != loopRunning {
		l.mu.Unlock()
		return nil, ErrRejected
	}
	l.periodic[f] = struct{}{}
	l.mu.Unlock()

	go l.runPeriodic(f, task, initialDelay, next)
	return f, nil
}

// runPeriodic drives one periodic registration. Each execution goes through
// the worker queue as a child run, so a single-worker loop serializes
// periodic work with everything else. A failed execution terminates the
// registration and surfaces the failure on the registration's future.
func (l *loop) runPeriodic(f *Future, task Task, initialDelay time.Duration, next func(start, end time.Time) time.Duration) {
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
		case <-f.stop:
			return
		}

		child := newFuture(l)
		if !f.setChild(child) {
			return
		}
		err := l.enqueueFuture(child, task, func(ctx context.Context) (interface{}, error) {
			return nil, task.Execute(ctx)
		})
		if err != nil {
			// The loop shut down between ticks.
			f.complete(nil, err)
			l.forget(f)
			return
		}

		select {
		case <-child.done:
		case <-f.stop:
			return
		}

		if _, cerr := child.result(); cerr != nil {
			if errors.Is(cerr, ErrCancelled) {
				return
			}
			f.complete(nil, cerr)
			l.forget(f)
			return
		}

		end := time.Now()
		start, ok := child.started()
		if !ok {
			start = end
		}
		wait := next(start, end)
		if wait < 0 {
			wait = 0
		}
		f.setDeadline(time.Now().Add(wait))
		timer.Reset(wait)
	}
}
