package composite

import (
	"log/slog"
	"runtime"
	"sync"
	"weak"

	"github.com/roach88/lockdown/internal/host"
	"github.com/roach88/lockdown/internal/types"
)

// Registry hands out the Manager of each composite value.
//
// It keeps a weak side table from handle to value so that managing a value
// never extends its lifetime. When a managed value becomes unreachable the
// runtime's cleanup callback queues its teardown; Collect performs it on
// the caller's goroutine, releasing the bindings the dead value held on its
// children.
//
// Thread-safety model:
//   - the side table and the teardown queue are guarded by mu
//   - Managers themselves assume a single thread of control
type Registry struct {
	caps   host.Capabilities
	logger *slog.Logger

	mu      sync.Mutex
	next    uint64
	entries map[uint64]weak.Pointer[Composite]
	dead    []reclaimed
}

// reclaimed is the cleanup argument of one managed value. It must not
// reference the value itself.
type reclaimed struct {
	handle uint64
	bound  *bindings
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for attach, detach and reclamation
// events. Default: slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a Registry enforcing caps.
func NewRegistry(caps host.Capabilities, opts ...RegistryOption) *Registry {
	r := &Registry{
		caps:    caps,
		logger:  slog.Default(),
		entries: make(map[uint64]weak.Pointer[Composite]),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capabilities returns the host capabilities the registry enforces.
func (r *Registry) Capabilities() host.Capabilities {
	return r.caps
}

// ManagerFor returns the Manager of c, creating it on first use. Pending
// teardowns are collected first.
func (r *Registry) ManagerFor(c *Composite) *Manager {
	r.Collect()
	return r.manager(c)
}

func (r *Registry) manager(c *Composite) *Manager {
	if c.mgr != nil {
		if c.mgr.reg != r {
			panic(types.Fatalf(types.FatalInvariant, "value is managed by another registry"))
		}
		return c.mgr
	}

	r.mu.Lock()
	r.next++
	handle := r.next
	r.entries[handle] = weak.Make(c)
	r.mu.Unlock()

	m := newManager(r, c, handle)
	c.mgr = m
	runtime.AddCleanup(c, r.enqueue, reclaimed{handle: handle, bound: m.bound})
	return m
}

// enqueue runs on the runtime's cleanup goroutine.
func (r *Registry) enqueue(rec reclaimed) {
	r.mu.Lock()
	r.dead = append(r.dead, rec)
	r.mu.Unlock()
}

// Collect tears down the managers of values that became unreachable since
// the last call and returns how many were reclaimed.
func (r *Registry) Collect() int {
	r.mu.Lock()
	dead := r.dead
	r.dead = nil
	for _, rec := range dead {
		delete(r.entries, rec.handle)
	}
	r.mu.Unlock()

	for _, rec := range dead {
		released := rec.bound.releaseAll()
		r.logger.Debug("manager reclaimed",
			"handle", rec.handle,
			"released_bindings", released,
		)
	}
	return len(dead)
}

// Len returns the number of values with a live entry in the side table.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Lookup returns the value registered under handle, if it is still alive.
func (r *Registry) Lookup(handle uint64) (*Composite, bool) {
	r.mu.Lock()
	wp, ok := r.entries[handle]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	c := wp.Value()
	return c, c != nil
}
