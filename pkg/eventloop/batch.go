package eventloop

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// InvokeAll submits every task and waits until all of them have finished or
// ctx is done. Each task is wrapped and observed independently; a failure in
// one never suppresses observation of the others. The returned futures carry
// the individual outcomes. When ctx expires first, the remaining tasks are
// interrupted and ctx's error is returned alongside the futures.
func (l *loop) InvokeAll(ctx context.Context, tasks []Task) ([]*Future, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	futures := make([]*Future, 0, len(tasks))
	for _, task := range tasks {
		f, err := l.Submit(task)
		if err != nil {
			for _, prev := range futures {
				prev.Cancel(true)
			}
			return nil, err
		}
		futures = append(futures, f)
	}

	var g errgroup.Group
	for _, f := range futures {
		f := f
		g.Go(func() error {
			select {
			case <-f.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		for _, f := range futures {
			f.Cancel(true)
		}
		return futures, err
	}
	return futures, nil
}

// InvokeAny submits every callable and returns the value of the first one to
// succeed, interrupting the rest. When every callable fails, the last
// observed failure is returned.
func (l *loop) InvokeAny(ctx context.Context, fns []Callable) (interface{}, error) {
	if len(fns) == 0 {
		return nil, errors.New("eventloop: no callables given")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	futures := make([]*Future, 0, len(fns))
	for _, fn := range fns {
		f, err := l.Call(fn)
		if err != nil {
			for _, prev := range futures {
				prev.Cancel(true)
			}
			return nil, err
		}
		futures = append(futures, f)
	}

	type outcome struct {
		value interface{}
		err   error
	}
	results := make(chan outcome, len(futures))
	for _, f := range futures {
		f := f
		go func() {
			v, err := f.Get()
			results <- outcome{value: v, err: err}
		}()
	}

	cancelAll := func() {
		for _, f := range futures {
			f.Cancel(true)
		}
	}

	var lastErr error
	for remaining := len(futures); remaining > 0; remaining-- {
		select {
		case out := <-results:
			if out.err == nil {
				cancelAll()
				return out.value, nil
			}
			lastErr = out.err
		case <-ctx.Done():
			cancelAll()
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
