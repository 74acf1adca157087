package eventloop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/goloop/internal/testutil"
)

// quietLogger keeps provoked task failures out of the test output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoop(workers int) Loop {
	return NewWithConfig(Config{Workers: workers, Name: "test", Logger: quietLogger()})
}

func TestSubmitAllComplete(t *testing.T) {
	loop := newTestLoop(4)
	defer loop.Shutdown()

	const numTasks = 50
	var mu sync.Mutex
	seen := make(map[int]int)

	futures := make([]*Future, 0, numTasks)
	for i := 0; i < numTasks; i++ {
		i := i
		f, err := loop.Submit(TaskFunc(func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			mu.Lock()
			seen[i]++
			mu.Unlock()
			return nil
		}))
		testutil.AssertNoError(t, err)
		futures = append(futures, f)
	}

	for _, f := range futures {
		_, err := f.Get()
		testutil.AssertNoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	testutil.AssertEqual(t, len(seen), numTasks)
	for i := 0; i < numTasks; i++ {
		testutil.AssertEqual(t, seen[i], 1)
	}
}

func TestSubmitResult(t *testing.T) {
	loop := newTestLoop(1)
	defer loop.Shutdown()

	f, err := loop.SubmitResult(TaskFunc(func(ctx context.Context) error {
		return nil
	}), "fixed")
	testutil.AssertNoError(t, err)

	v, err := f.Get()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.(string), "fixed")
}

func TestSubmitResultError(t *testing.T) {
	loop := newTestLoop(1)
	defer loop.Shutdown()

	boom := errors.New("boom")
	f, err := loop.SubmitResult(TaskFunc(func(ctx context.Context) error {
		return boom
	}), "fixed")
	testutil.AssertNoError(t, err)

	v, err := f.Get()
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, v == nil, true)
}

func TestCall(t *testing.T) {
	loop := newTestLoop(2)
	defer loop.Shutdown()

	f, err := loop.Call(func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	testutil.AssertNoError(t, err)

	v, err := f.Get()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.(int), 42)
}

func TestExecutionErrorCarriesCause(t *testing.T) {
	loop := newTestLoop(1)
	defer loop.Shutdown()

	cause := errors.New("disk on fire")
	f, err := loop.Submit(TaskFunc(func(ctx context.Context) error {
		return cause
	}))
	testutil.AssertNoError(t, err)

	_, err = f.Get()
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, errors.Is(err, cause), true)

	var execErr *ExecutionError
	testutil.AssertEqual(t, errors.As(err, &execErr), true)
	testutil.AssertEqual(t, execErr.Cause, cause)
	testutil.AssertEqual(t, strings.HasPrefix(execErr.Loop, "test-"), true)
}

func TestPanicRecovery(t *testing.T) {
	loop := newTestLoop(1)
	defer loop.Shutdown()

	f, err := loop.Submit(TaskFunc(func(ctx context.Context) error {
		panic("kaboom")
	}))
	testutil.AssertNoError(t, err)

	_, err = f.Get()
	testutil.AssertError(t, err)

	var panicErr *PanicError
	testutil.AssertEqual(t, errors.As(err, &panicErr), true)
	testutil.AssertEqual(t, panicErr.Value.(string), "kaboom")
	testutil.AssertEqual(t, len(panicErr.Stack) > 0, true)

	// The worker survives the panic.
	f2, err := loop.Submit(TaskFunc(func(ctx context.Context) error { return nil }))
	testutil.AssertNoError(t, err)
	_, err = f2.Get()
	testutil.AssertNoError(t, err)
}

func TestScheduleDelay(t *testing.T) {
	loop := newTestLoop(1)
	defer loop.Shutdown()

	var ran atomic.Bool
	start := time.Now()
	f, err := loop.Schedule(TaskFunc(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}), 50*time.Millisecond)
	testutil.AssertNoError(t, err)

	time.Sleep(10 * time.Millisecond)
	testutil.AssertEqual(t, ran.Load(), false)

	_, err = f.GetTimeout(time.Second)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ran.Load(), true)
	testutil.AssertEqual(t, time.Since(start) >= 50*time.Millisecond, true)
}

func TestScheduleZeroDelayRunsImmediately(t *testing.T) {
	loop := newTestLoop(1)
	defer loop.Shutdown()

	for _, delay := range []time.Duration{0, -time.Second} {
		f, err := loop.Schedule(TaskFunc(func(ctx context.Context) error { return nil }), delay)
		testutil.AssertNoError(t, err)
		_, err = f.GetTimeout(time.Second)
		testutil.AssertNoError(t, err)
	}
}

func TestScheduleCall(t *testing.T) {
	loop := newTestLoop(1)
	defer loop.Shutdown()

	f, err := loop.ScheduleCall(func(ctx context.Context) (interface{}, error) {
		return "later", nil
	}, 20*time.Millisecond)
	testutil.AssertNoError(t, err)

	v, err := f.GetTimeout(time.Second)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.(string), "later")
}

func TestSubmitNil(t *testing.T) {
	loop := newTestLoop(1)
	defer loop.Shutdown()

	_, err := loop.Submit(nil)
	testutil.AssertError(t, err)
	_, err = loop.Call(nil)
	testutil.AssertError(t, err)
	_, err = loop.Schedule(nil, time.Second)
	testutil.AssertError(t, err)
}

func TestRejectedAfterShutdown(t *testing.T) {
	loop := newTestLoop(1)

	testutil.AssertNoError(t, loop.Shutdown())
	testutil.AssertEqual(t, loop.IsShutdown(), true)

	_, err := loop.Submit(TaskFunc(func(ctx context.Context) error { return nil }))
	testutil.AssertEqual(t, errors.Is(err, ErrRejected), true)

	_, err = loop.Schedule(TaskFunc(func(ctx context.Context) error { return nil }), time.Second)
	testutil.AssertEqual(t, errors.Is(err, ErrRejected), true)

	_, err = loop.ScheduleAtFixedRate(TaskFunc(func(ctx context.Context) error { return nil }), 0, time.Second)
	testutil.AssertEqual(t, errors.Is(err, ErrRejected), true)
}

func TestShutdownDrainsQueuedWork(t *testing.T) {
	loop := newTestLoop(1)

	var completed atomic.Int32
	for i := 0; i < 5; i++ {
		_, err := loop.Submit(TaskFunc(func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			completed.Add(1)
			return nil
		}))
		testutil.AssertNoError(t, err)
	}

	testutil.AssertNoError(t, loop.Shutdown())
	testutil.AssertEqual(t, loop.AwaitTermination(2*time.Second), true)
	testutil.AssertEqual(t, loop.IsTerminated(), true)
	testutil.AssertEqual(t, completed.Load(), int32(5))
}

func TestShutdownRunsAlreadyDelayedWork(t *testing.T) {
	loop := newTestLoop(1)

	var ran atomic.Bool
	f, err := loop.Schedule(TaskFunc(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}), 30*time.Millisecond)
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, loop.Shutdown())

	_, err = f.GetTimeout(time.Second)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ran.Load(), true)
	testutil.AssertEqual(t, loop.AwaitTermination(time.Second), true)
}

func TestShutdownNowReturnsUnstarted(t *testing.T) {
	loop := newTestLoop(1)

	started := make(chan struct{})
	_, err := loop.Submit(TaskFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	testutil.AssertNoError(t, err)
	<-started

	for i := 0; i < 3; i++ {
		_, err := loop.Submit(TaskFunc(func(ctx context.Context) error { return nil }))
		testutil.AssertNoError(t, err)
	}

	unstarted, err := loop.ShutdownNow()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(unstarted), 3)
	testutil.AssertEqual(t, loop.AwaitTermination(2*time.Second), true)
}

func TestShutdownNowReturnsDelayedTasks(t *testing.T) {
	loop := newTestLoop(1)

	var ran atomic.Bool
	_, err := loop.Schedule(TaskFunc(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}), time.Hour)
	testutil.AssertNoError(t, err)

	unstarted, err := loop.ShutdownNow()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(unstarted), 1)
	testutil.AssertEqual(t, loop.AwaitTermination(time.Second), true)
	testutil.AssertEqual(t, ran.Load(), false)
}

func TestAwaitTerminationTimesOut(t *testing.T) {
	loop := newTestLoop(1)
	defer loop.Shutdown()

	// Not shut down: the wait must report false after the timeout.
	testutil.AssertEqual(t, loop.AwaitTermination(20*time.Millisecond), false)
}

func TestWorkerNames(t *testing.T) {
	loop := newTestLoop(2)
	defer loop.Shutdown()

	f, err := loop.Call(func(ctx context.Context) (interface{}, error) {
		return WorkerName(ctx), nil
	})
	testutil.AssertNoError(t, err)

	v, err := f.Get()
	testutil.AssertNoError(t, err)

	name := v.(string)
	testutil.AssertEqual(t, strings.HasPrefix(name, loop.Name()+"-worker-"), true)
}

func TestLoopNamesUnique(t *testing.T) {
	a := newTestLoop(1)
	b := newTestLoop(1)
	defer a.Shutdown()
	defer b.Shutdown()

	testutil.AssertEqual(t, a.Name() != b.Name(), true)
}

func TestSizeActiveQueued(t *testing.T) {
	loop := newTestLoop(2)
	defer loop.Shutdown()

	testutil.AssertEqual(t, loop.Size(), 2)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		_, err := loop.Submit(TaskFunc(func(ctx context.Context) error {
			started <- struct{}{}
			<-release
			return nil
		}))
		testutil.AssertNoError(t, err)
	}
	<-started
	<-started

	_, err := loop.Submit(TaskFunc(func(ctx context.Context) error { return nil }))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, loop.Active(), 2)
	testutil.AssertEqual(t, loop.Queued(), 1)
	close(release)
}
