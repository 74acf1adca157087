package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Loop lifecycle states.
const (
	loopRunning = iota
	loopShutdown // draining: no new work, queued and delayed work still runs
	loopStopped  // halted: queue dropped, running work interrupted
)

type taskRun struct {
	task   Task // original unit of work, returned by ShutdownNow
	fn     Callable
	future *Future
}

type loop struct {
	name       string
	size       int
	daemon     bool
	protected  bool
	logger     *slog.Logger
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	cond     *sync.Cond
	state    int
	queue    []*taskRun
	delayed  map[*Future]*taskRun // scheduled, timer not yet fired
	periodic map[*Future]struct{}
	active   int

	wg         sync.WaitGroup
	reapOnce   sync.Once
	terminated chan struct{}
}

// Submit runs the task as soon as a worker is free.
func (l *loop) Submit(task Task) (*Future, error) {
	if task == nil {
		return nil, errors.New("eventloop: task cannot be nil")
	}
	return l.enqueue(task, func(ctx context.Context) (interface{}, error) {
		return nil, task.Execute(ctx)
	})
}

// SubmitResult is like Submit but resolves to the supplied value on success.
func (l *loop) SubmitResult(task Task, result interface{}) (*Future, error) {
	if task == nil {
		return nil, errors.New("eventloop: task cannot be nil")
	}
	return l.enqueue(task, func(ctx context.Context) (interface{}, error) {
		if err := task.Execute(ctx); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// Call runs a value-producing unit of work.
func (l *loop) Call(fn Callable) (*Future, error) {
	if fn == nil {
		return nil, errors.New("eventloop: callable cannot be nil")
	}
	task := TaskFunc(func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	})
	return l.enqueue(task, fn)
}

// Schedule runs the task once after delay. Zero or negative delay means as
// soon as possible.
func (l *loop) Schedule(task Task, delay time.Duration) (*Future, error) {
	if task == nil {
		return nil, errors.New("eventloop: task cannot be nil")
	}
	return l.scheduleRun(task, func(ctx context.Context) (interface{}, error) {
		return nil, task.Execute(ctx)
	}, delay)
}

// ScheduleCall runs a value-producing unit of work once after delay.
func (l *loop) ScheduleCall(fn Callable, delay time.Duration) (*Future, error) {
	if fn == nil {
		return nil, errors.New("eventloop: callable cannot be nil")
	}
	task := TaskFunc(func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	})
	return l.scheduleRun(task, fn, delay)
}

func (l *loop) scheduleRun(task Task, fn Callable, delay time.Duration) (*Future, error) {
	if delay <= 0 {
		return l.enqueue(task, fn)
	}

	f := newFuture(l)
	f.deadline = time.Now().Add(delay)
	run := &taskRun{task: task, fn: fn, future: f}

	l.mu.Lock()
	if l.state != loopRunning {
		l.mu.Unlock()
		return nil, ErrRejected
	}
	l.delayed[f] = run
	l.mu.Unlock()

	// Hold f.mu while arming the timer so a racing Cancel observes it.
	f.mu.Lock()
	if f.state == statePending {
		f.timer = time.AfterFunc(delay, func() { l.fire(f, run) })
	}
	f.mu.Unlock()

	return f, nil
}

// fire moves a delayed task into the worker queue when its timer elapses.
func (l *loop) fire(f *Future, run *taskRun) {
	l.mu.Lock()
	if _, ok := l.delayed[f]; !ok {
		// cancelled or the loop was halted
		l.mu.Unlock()
		return
	}
	delete(l.delayed, f)
	if l.state == loopStopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, run)
	l.mu.Unlock()
	l.cond.Broadcast()
}

// forget detaches a cancelled future from the loop's pending bookkeeping.
func (l *loop) forget(f *Future) {
	l.mu.Lock()
	delete(l.delayed, f)
	delete(l.periodic, f)
	l.mu.Unlock()
	l.cond.Broadcast()
}

func (l *loop) enqueue(task Task, fn Callable) (*Future, error) {
	f := newFuture(l)
	return f, l.enqueueFuture(f, task, fn)
}

func (l *loop) enqueueFuture(f *Future, task Task, fn Callable) error {
	run := &taskRun{task: task, fn: fn, future: f}
	l.mu.Lock()
	if l.state != loopRunning {
		l.mu.Unlock()
		return ErrRejected
	}
	l.queue = append(l.queue, run)
	l.mu.Unlock()
	l.cond.Broadcast()
	return nil
}

// worker is the main loop of one worker goroutine.
func (l *loop) worker(name string) {
	defer l.wg.Done()

	for {
		run := l.next()
		if run == nil {
			return
		}
		l.execute(name, run)
	}
}

// next blocks until work is available or the loop can terminate.
func (l *loop) next() *taskRun {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		if l.state == loopStopped {
			return nil
		}
		if len(l.queue) > 0 {
			run := l.queue[0]
			l.queue = l.queue[1:]
			l.active++
			return run
		}
		// After a graceful shutdown the queue can only grow from delayed
		// timers, so an empty queue with no outstanding timers is final.
		if l.state == loopShutdown && len(l.delayed) == 0 {
			l.cond.Broadcast()
			return nil
		}
		l.cond.Wait()
	}
}

// execute runs one task with failure observation. Errors and recovered
// panics are logged with loop context before being recorded on the future,
// so fire-and-forget work is never silently lost.
func (l *loop) execute(workerName string, run *taskRun) {
	defer func() {
		l.mu.Lock()
		l.active--
		l.mu.Unlock()
		l.cond.Broadcast()
	}()

	runCtx, cancel := context.WithCancel(l.baseCtx)
	defer cancel()
	runCtx = withWorkerName(runCtx, workerName)

	if !run.future.tryStart(cancel) {
		return
	}

	value, err := l.invoke(runCtx, run.fn)
	if err != nil {
		err = &ExecutionError{Loop: l.name, Worker: workerName, Cause: err}
	}
	recorded := run.future.complete(value, err)
	if recorded && err != nil {
		l.logger.Error("scheduled task failed",
			"loop", l.name,
			"worker", workerName,
			"error", err)
	}
}

func (l *loop) invoke(ctx context.Context, fn Callable) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// Shutdown stops accepting new work and drains queued, running, and delayed
// work. Periodic registrations are cancelled.
func (l *loop) Shutdown() error {
	if l.protected {
		return ErrShutdownUnsupported
	}
	l.terminate()
	return nil
}

// terminate is the real graceful shutdown, also used by the process-exit
// hook of protected loops.
func (l *loop) terminate() {
	l.mu.Lock()
	if l.state != loopRunning {
		l.mu.Unlock()
		return
	}
	l.state = loopShutdown
	periodics := make([]*Future, 0, len(l.periodic))
	for f := range l.periodic {
		periodics = append(periodics, f)
	}
	l.mu.Unlock()

	for _, f := range periodics {
		f.Cancel(false)
	}
	l.cond.Broadcast()
	l.reap()
}

// ShutdownNow halts the loop, interrupts running work, and returns the tasks
// that never started.
func (l *loop) ShutdownNow() ([]Task, error) {
	if l.protected {
		return nil, ErrShutdownUnsupported
	}

	l.mu.Lock()
	l.state = loopStopped
	drained := l.queue
	l.queue = nil
	pending := make([]*Future, 0, len(l.delayed))
	unstarted := make([]Task, 0, len(drained)+len(l.delayed))
	for _, run := range drained {
		unstarted = append(unstarted, run.task)
	}
	for f, run := range l.delayed {
		pending = append(pending, f)
		unstarted = append(unstarted, run.task)
	}
	periodics := make([]*Future, 0, len(l.periodic))
	for f := range l.periodic {
		periodics = append(periodics, f)
	}
	l.mu.Unlock()

	for _, run := range drained {
		run.future.Cancel(false)
	}
	for _, f := range pending {
		f.Cancel(false)
	}
	for _, f := range periodics {
		f.Cancel(true)
	}

	// Interrupt everything currently running.
	l.baseCancel()
	l.cond.Broadcast()
	l.reap()
	return unstarted, nil
}

func (l *loop) reap() {
	l.reapOnce.Do(func() {
		go func() {
			l.wg.Wait()
			close(l.terminated)
		}()
	})
}

// AwaitTermination blocks until the loop has fully stopped or timeout
// elapses.
func (l *loop) AwaitTermination(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-l.terminated:
		return true
	case <-timer.C:
		return false
	}
}

// IsShutdown reports whether shutdown has been initiated.
func (l *loop) IsShutdown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state != loopRunning
}

// IsTerminated reports whether all workers have exited.
func (l *loop) IsTerminated() bool {
	select {
	case <-l.terminated:
		return true
	default:
		return false
	}
}

// Size returns the number of workers owned by the loop.
func (l *loop) Size() int { return l.size }

// Active returns the number of workers currently executing tasks.
func (l *loop) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Queued returns the number of tasks waiting for a worker.
func (l *loop) Queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Name returns the loop's unique instance name.
func (l *loop) Name() string { return l.name }
