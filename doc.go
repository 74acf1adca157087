/*
Package goloop provides managed event loops for Go applications: named worker
pools with uniform immediate, delayed, periodic, and cron scheduling,
cancelable future handles, and lazily constructed process-wide global loops.

Event Loops (pkg/eventloop):
  - Loop: fixed-size worker pool with Submit/Schedule/ScheduleAtFixedRate/
    ScheduleWithFixedDelay/ScheduleCron
  - Future: cancellation, completion polling, blocking and timed retrieval,
    caller annotations
  - Registry: exactly-once lazy construction of the global general, serial,
    and io loops
  - MetricsLoop and ThrottledLoop decorators

Support packages:
  - pkg/common/errors: shared error sentinels and classification helpers
  - pkg/common/lifecycle: explicit process-exit hook registration
  - pkg/metrics: Prometheus instrumentation registry

Example usage:

	import "github.com/vnykmshr/goloop/pkg/eventloop"

	f, _ := eventloop.General().Submit(eventloop.TaskFunc(func(ctx context.Context) error {
		return process(ctx)
	}))
	if _, err := f.Get(); err != nil {
		log.Printf("task failed: %v", err)
	}
*/
package goloop
