// Package lifecycle provides an explicit registration point for cleanup work
// that must run once, at process exit.
//
// Components register hooks during construction; the application calls Run
// from its main exit path (or wires it behind signal handling). Hooks run in
// reverse registration order, mirroring defer semantics.
package lifecycle

import (
	"log/slog"
	"sync"
)

// Hook is a cleanup routine to run at process exit.
type Hook func()

// Hooks collects exit hooks and runs them exactly once.
// The zero value is ready to use.
type Hooks struct {
	mu    sync.Mutex
	hooks []Hook
	once  sync.Once

	// Logger receives a record per hook panic. Nil means slog.Default().
	Logger *slog.Logger
}

// New creates an empty hook registrar.
func New() *Hooks {
	return &Hooks{}
}

// Register adds a hook to run at process exit. Registering after Run has
// been called is a no-op.
func (h *Hooks) Register(hook Hook) {
	if hook == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Run executes all registered hooks in reverse registration order.
// Subsequent calls do nothing. A panicking hook is logged and does not
// prevent the remaining hooks from running.
func (h *Hooks) Run() {
	h.once.Do(func() {
		h.mu.Lock()
		hooks := h.hooks
		h.hooks = nil
		h.mu.Unlock()

		for i := len(hooks) - 1; i >= 0; i-- {
			h.runOne(hooks[i])
		}
	})
}

// Len returns the number of hooks currently registered.
func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

func (h *Hooks) runOne(hook Hook) {
	defer func() {
		if r := recover(); r != nil {
			h.logger().Error("exit hook panicked", "panic", r)
		}
	}()
	hook()
}

func (h *Hooks) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Default is the process-wide hook registrar used by package-level functions.
var Default = New()

// Register adds a hook to the default registrar.
func Register(hook Hook) {
	Default.Register(hook)
}

// Run executes the default registrar's hooks, once.
func Run() {
	Default.Run()
}
