package eventloop

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/goloop/pkg/common/lifecycle"
)

// Task represents a unit of work that can be executed by a loop worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Callable is a unit of work that produces a value.
type Callable func(ctx context.Context) (interface{}, error)

// Loop is a named worker pool with uniform immediate, delayed, and periodic
// scheduling. Every submission returns a *Future handle; submission calls
// never block.
type Loop interface {
	// Submit runs the task as soon as a worker is free.
	Submit(task Task) (*Future, error)

	// SubmitResult is like Submit, but a successful run resolves the future
	// to the supplied value instead of nil.
	SubmitResult(task Task, result interface{}) (*Future, error)

	// Call runs a value-producing unit of work; the future resolves to the
	// returned value.
	Call(fn Callable) (*Future, error)

	// Schedule runs the task once after delay has elapsed, measured from
	// submission. A zero or negative delay means as soon as possible.
	Schedule(task Task, delay time.Duration) (*Future, error)

	// ScheduleCall runs a value-producing unit of work once after delay.
	ScheduleCall(fn Callable, delay time.Duration) (*Future, error)

	// ScheduleAtFixedRate runs the task after initialDelay and then every
	// period, measured from the start of each execution. Executions of one
	// registration never overlap; an overrunning execution pushes the next
	// run to start immediately after it finishes, with no catch-up for
	// missed ticks.
	ScheduleAtFixedRate(task Task, initialDelay, period time.Duration) (*Future, error)

	// ScheduleWithFixedDelay runs the task after initialDelay and then
	// repeatedly with delay measured from the end of one execution to the
	// start of the next.
	ScheduleWithFixedDelay(task Task, initialDelay, delay time.Duration) (*Future, error)

	// ScheduleCron runs the task on a cron schedule. Supports the standard
	// five-field format plus seconds and descriptors such as "@hourly".
	ScheduleCron(expr string, task Task) (*Future, error)

	// InvokeAll submits every task and waits for all of them to finish or
	// for ctx to be done. Individual task failures are observed on the
	// returned futures, not as the error result.
	InvokeAll(ctx context.Context, tasks []Task) ([]*Future, error)

	// InvokeAny submits every callable and returns the value of the first
	// one to succeed, cancelling the rest.
	InvokeAny(ctx context.Context, fns []Callable) (interface{}, error)

	// Shutdown stops accepting new work and lets queued, running, and
	// already-delayed work finish. Periodic registrations are cancelled.
	// It does not block. Protected loops return ErrShutdownUnsupported.
	Shutdown() error

	// ShutdownNow stops accepting new work, interrupts running work, and
	// returns the tasks that never started.
	ShutdownNow() ([]Task, error)

	// AwaitTermination blocks until the loop is fully stopped or timeout
	// elapses, reporting whether termination completed in time.
	AwaitTermination(timeout time.Duration) bool

	// IsShutdown reports whether shutdown has been initiated.
	IsShutdown() bool

	// IsTerminated reports whether all workers have exited.
	IsTerminated() bool

	// Size returns the number of workers owned by the loop.
	Size() int

	// Active returns the number of workers currently executing tasks.
	Active() int

	// Queued returns the number of tasks waiting for a worker.
	Queued() int

	// Name returns the loop's unique instance name.
	Name() string
}

// IOWorkers is the worker count of the global I/O loop.
const IOWorkers = 128

// Config holds configuration options for creating a loop.
type Config struct {
	// Workers is the number of worker goroutines. Defaults to
	// runtime.NumCPU() when zero or negative.
	Workers int

	// Name is the role part of the loop's instance name. Worker names are
	// derived from it and a loop creation sequence number. Defaults to
	// "eventloop".
	Name string

	// Daemon loops do not take part in process-exit draining. A non-daemon
	// protected loop registers its shutdown with the Lifecycle registrar at
	// construction. Caller-owned loops ignore this except for naming parity
	// with the global loops.
	Daemon bool

	// Protected loops reject Shutdown and ShutdownNow with
	// ErrShutdownUnsupported. Set by the registry for the global loops.
	Protected bool

	// Logger receives a record for every task failure observed inside the
	// loop. Nil means slog.Default().
	Logger *slog.Logger

	// Lifecycle is the exit-hook registrar used by non-daemon protected
	// loops. Nil means lifecycle.Default.
	Lifecycle *lifecycle.Hooks
}

// loopSeq numbers loop instances so worker names stay unique per loop.
var loopSeq atomic.Int64

// New creates a loop with the given worker count and daemon flag.
func New(workers int, daemon bool) Loop {
	return NewWithConfig(Config{Workers: workers, Daemon: daemon})
}

// NewSerial creates a single-worker loop that serializes all work.
func NewSerial(daemon bool) Loop {
	return NewWithConfig(Config{Workers: 1, Daemon: daemon})
}

// NewWithConfig creates a loop with the specified configuration.
func NewWithConfig(cfg Config) Loop {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Name == "" {
		cfg.Name = "eventloop"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Lifecycle == nil {
		cfg.Lifecycle = lifecycle.Default
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	l := &loop{
		name:       fmt.Sprintf("%s-%d", cfg.Name, loopSeq.Add(1)),
		size:       cfg.Workers,
		daemon:     cfg.Daemon,
		protected:  cfg.Protected,
		logger:     cfg.Logger,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		delayed:    make(map[*Future]*taskRun),
		periodic:   make(map[*Future]struct{}),
		terminated: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)

	for i := 0; i < l.size; i++ {
		l.wg.Add(1)
		go l.worker(fmt.Sprintf("%s-worker-%d", l.name, i))
	}

	if cfg.Protected && !cfg.Daemon {
		cfg.Lifecycle.Register(func() {
			l.terminate()
			l.AwaitTermination(5 * time.Second)
		})
	}

	return l
}

