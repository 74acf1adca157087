package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/vnykmshr/goloop/pkg/common/errors"
	"github.com/vnykmshr/goloop/pkg/common/lifecycle"
)

func TestGetOrCreateConstructsOnce(t *testing.T) {
	r := NewRegistry(lifecycle.New())

	var constructions atomic.Int32
	factory := func() Loop {
		constructions.Add(1)
		return NewWithConfig(Config{Workers: 1, Name: "counted", Protected: true, Daemon: true})
	}

	const callers = 32
	loops := make([]Loop, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			loops[i] = r.GetOrCreate("counted", factory)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), constructions.Load(), "factory must run exactly once")
	for i := 1; i < callers; i++ {
		assert.Same(t, loops[0], loops[i], "all callers must observe the same instance")
	}
}

func TestGlobalAccessorsIdempotent(t *testing.T) {
	r := NewRegistry(lifecycle.New())

	assert.Same(t, r.General(), r.General())
	assert.Same(t, r.Serial(), r.Serial())
	assert.Same(t, r.IO(), r.IO())
	assert.NotSame(t, r.General(), r.Serial())
}

func TestGlobalLoopSizes(t *testing.T) {
	r := NewRegistry(lifecycle.New())

	assert.Equal(t, 1, r.Serial().Size())
	assert.Equal(t, IOWorkers, r.IO().Size())
	assert.GreaterOrEqual(t, r.General().Size(), 1)
}

func TestProtectedShutdownRejected(t *testing.T) {
	r := NewRegistry(lifecycle.New())
	loop := r.Serial()

	err := loop.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShutdownUnsupported)
	assert.ErrorIs(t, err, commonerrors.ErrUnsupported)

	_, err = loop.ShutdownNow()
	assert.ErrorIs(t, err, ErrShutdownUnsupported)

	// The loop stays fully operational afterwards.
	f, err := loop.Submit(TaskFunc(func(ctx context.Context) error { return nil }))
	require.NoError(t, err)
	_, err = f.GetTimeout(time.Second)
	assert.NoError(t, err)
	assert.False(t, loop.IsShutdown())
}

func TestNonDaemonGlobalRegistersExitHook(t *testing.T) {
	hooks := lifecycle.New()
	r := NewRegistry(hooks)

	loop := r.GetOrCreate("drained", func() Loop {
		return NewWithConfig(Config{
			Workers:   1,
			Name:      "global-drained",
			Protected: true,
			Daemon:    false,
			Lifecycle: hooks,
		})
	})

	require.Equal(t, 1, hooks.Len(), "non-daemon protected loop must register its shutdown")
	assert.ErrorIs(t, loop.Shutdown(), ErrShutdownUnsupported)

	// The registered hook performs the real shutdown at process exit.
	hooks.Run()
	assert.True(t, loop.IsShutdown())
	assert.True(t, loop.AwaitTermination(2*time.Second))
}

func TestDaemonGlobalSkipsExitHook(t *testing.T) {
	hooks := lifecycle.New()
	r := NewRegistry(hooks)
	r.General()
	r.Serial()
	r.IO()

	assert.Equal(t, 0, hooks.Len(), "daemon global loops need no exit hook")
}

func TestDefaultAccessors(t *testing.T) {
	assert.Same(t, General(), General())
	assert.Same(t, Serial(), Serial())
	assert.Same(t, IO(), IO())

	f, err := General().Submit(TaskFunc(func(ctx context.Context) error { return nil }))
	require.NoError(t, err)
	_, err = f.GetTimeout(time.Second)
	assert.NoError(t, err)
}

func TestGlobalLoopNaming(t *testing.T) {
	r := NewRegistry(lifecycle.New())

	assert.Contains(t, r.Serial().Name(), "global-serial")
	assert.Contains(t, r.IO().Name(), "global-io")
	assert.Contains(t, r.General().Name(), "global-general")
}

func TestProtectedErrorDistinctFromRejection(t *testing.T) {
	r := NewRegistry(lifecycle.New())

	err := r.Serial().Shutdown()
	assert.False(t, errors.Is(err, ErrRejected))
	assert.True(t, errors.Is(err, ErrShutdownUnsupported))
}
