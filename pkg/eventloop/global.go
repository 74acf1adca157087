package eventloop

import (
	"runtime"
	"sync"

	"github.com/vnykmshr/goloop/pkg/common/lifecycle"
)

// Names of the global loops owned by a Registry.
const (
	GeneralLoopName = "general"
	SerialLoopName  = "serial"
	IOLoopName      = "io"
)

// Registry owns a set of named, lazily constructed, process-wide loops.
// Each name is constructed at most once, no matter how many goroutines race
// on first access; every caller observes the same instance. Loops handed out
// by a registry are protected: they reject direct shutdown and live until
// process exit.
type Registry struct {
	hooks *lifecycle.Hooks

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once sync.Once
	loop Loop
}

// NewRegistry creates a registry whose non-daemon loops drain through the
// given exit-hook registrar. Nil means lifecycle.Default.
func NewRegistry(hooks *lifecycle.Hooks) *Registry {
	if hooks == nil {
		hooks = lifecycle.Default
	}
	return &Registry{
		hooks:   hooks,
		entries: make(map[string]*registryEntry),
	}
}

// GetOrCreate returns the loop registered under name, constructing it with
// factory on first access. Construction happens exactly once per name; no
// lock is held while factory runs, and concurrent callers wait for and share
// its result.
func (r *Registry) GetOrCreate(name string, factory func() Loop) Loop {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		e = &registryEntry{}
		r.entries[name] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.loop = factory()
	})
	return e.loop
}

// General returns the shared general-purpose loop, sized to the number of
// available processing units.
func (r *Registry) General() Loop {
	return r.GetOrCreate(GeneralLoopName, func() Loop {
		return r.newGlobal(GeneralLoopName, runtime.NumCPU())
	})
}

// Serial returns the shared single-worker loop. All work submitted to it is
// strictly serialized.
func (r *Registry) Serial() Loop {
	return r.GetOrCreate(SerialLoopName, func() Loop {
		return r.newGlobal(SerialLoopName, 1)
	})
}

// IO returns the shared high-concurrency loop for I/O-bound work.
func (r *Registry) IO() Loop {
	return r.GetOrCreate(IOLoopName, func() Loop {
		return r.newGlobal(IOLoopName, IOWorkers)
	})
}

func (r *Registry) newGlobal(role string, workers int) Loop {
	return NewWithConfig(Config{
		Workers:   workers,
		Name:      "global-" + role,
		Daemon:    true,
		Protected: true,
		Lifecycle: r.hooks,
	})
}

// DefaultRegistry owns the process-wide global loops returned by the
// package-level accessors.
var DefaultRegistry = NewRegistry(lifecycle.Default)

// General returns the process-wide general-purpose loop.
func General() Loop { return DefaultRegistry.General() }

// Serial returns the process-wide single-worker loop.
func Serial() Loop { return DefaultRegistry.Serial() }

// IO returns the process-wide I/O loop.
func IO() Loop { return DefaultRegistry.IO() }
