package task

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalRegistry fans host termination signals out to per-task cleanup
// hooks. Hooks are keyed by task ID so each supervision can deregister
// during cleanup and the registry does not grow with finished tasks.
type SignalRegistry struct {
	mu    sync.Mutex
	hooks map[string]func()

	ch        chan os.Signal
	closeOnce sync.Once
}

// NewSignalRegistry subscribes to the given signals and starts
// dispatching. With no arguments it watches SIGINT and SIGTERM.
func NewSignalRegistry(signals ...os.Signal) *SignalRegistry {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	r := &SignalRegistry{
		hooks: make(map[string]func()),
		ch:    make(chan os.Signal, 1),
	}
	signal.Notify(r.ch, signals...)
	go r.dispatch()
	return r
}

func (r *SignalRegistry) dispatch() {
	for range r.ch {
		r.Trigger()
	}
}

// Register installs hook under taskID, replacing any previous hook with
// the same ID.
func (r *SignalRegistry) Register(taskID string, hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[taskID] = hook
}

// Deregister removes the hook for taskID. Unknown IDs are no-ops.
func (r *SignalRegistry) Deregister(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hooks, taskID)
}

// Len reports the number of registered hooks.
func (r *SignalRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// Trigger invokes every registered hook, exactly as an arriving signal
// would. Hooks run outside the registry lock so they may deregister
// themselves.
func (r *SignalRegistry) Trigger() {
	r.mu.Lock()
	hooks := make([]func(), 0, len(r.hooks))
	for _, hook := range r.hooks {
		hooks = append(hooks, hook)
	}
	r.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// Close stops signal delivery and ends the dispatch goroutine.
func (r *SignalRegistry) Close() {
	r.closeOnce.Do(func() {
		signal.Stop(r.ch)
		close(r.ch)
	})
}
