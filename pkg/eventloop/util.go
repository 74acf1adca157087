package eventloop

import (
	"context"
	"time"
)

type workerNameKey struct{}

func withWorkerName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, workerNameKey{}, name)
}

// WorkerName returns the name of the loop worker executing the current task,
// or the empty string when ctx does not originate from a loop worker.
func WorkerName(ctx context.Context) string {
	name, _ := ctx.Value(workerNameKey{}).(string)
	return name
}

// Sleep blocks for the given duration or until ctx is done, returning the
// context's error in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
