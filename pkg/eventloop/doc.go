/*
Package eventloop provides managed worker loops with uniform immediate,
delayed, and periodic task scheduling.

A Loop owns a fixed set of worker goroutines. Every submission goes through
a wrapper that observes failures: errors and panics are logged with loop and
worker context before being recorded, so fire-and-forget work is never
silently lost. Each submission returns a *Future handle for cancellation,
completion polling, and result retrieval.

Basic usage:

	loop := eventloop.New(4, false) // 4 workers
	defer loop.Shutdown()

	f, err := loop.Submit(eventloop.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	}))
	if err != nil {
		log.Printf("Failed to submit: %v", err)
	}

	if _, err := f.Get(); err != nil {
		log.Printf("Task failed: %v", err)
	}

Scheduling:

	// Run once after a delay
	f, _ := loop.Schedule(task, 500*time.Millisecond)

	// Run every second, measured start-to-start; executions never overlap
	f, _ = loop.ScheduleAtFixedRate(task, 0, time.Second)

	// Run with a one-second pause between executions, end-to-start
	f, _ = loop.ScheduleWithFixedDelay(task, 0, time.Second)

	// Run on a cron schedule
	f, _ = loop.ScheduleCron("@every 5m", task)

Global loops:

Three process-wide loops are constructed lazily on first access and shared by
all callers:

	eventloop.General() // worker count = number of CPUs
	eventloop.Serial()  // single worker, strictly serialized
	eventloop.IO()      // 128 workers for I/O-bound work

Global loops are protected: Shutdown and ShutdownNow return
ErrShutdownUnsupported, so no caller can tear down a shared resource out from
under the others. Their real shutdown runs at process exit through
pkg/common/lifecycle when configured non-daemon.

Futures:

	f, _ := loop.Schedule(task, time.Second)

	f.Delay()        // time until the scheduled run
	f.Cancel(false)  // prevent a pending task from running
	f.Done()         // non-blocking completion poll
	v, err := f.GetTimeout(2 * time.Second)

	// Caller annotations, independent of the task's result
	f.SetAttr("request-id", id)

Failure kinds are distinguishable with errors.Is / errors.As: ErrRejected for
submission after shutdown, ErrCancelled for retrieving a cancelled task's
result, ErrWaitTimeout for a bounded wait that elapsed, and *ExecutionError
(wrapping the original cause) for work that failed.

Decorators:

MetricsLoop adds Prometheus instrumentation and ThrottledLoop paces
submissions with a token-bucket limiter:

	ml := eventloop.NewWithMetrics(8, false, "ingest")
	tl := eventloop.NewThrottled(loop, rate.Limit(100), 10)
*/
package eventloop
