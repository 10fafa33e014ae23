package queue

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Handler re-executes the work described by an item's payload.
// Handlers must be safe to run more than once for the same payload.
type Handler interface {
	Handle(ctx context.Context, payload json.RawMessage) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Handle calls f(ctx, payload)
func (f HandlerFunc) Handle(ctx context.Context, payload json.RawMessage) error {
	return f(ctx, payload)
}

// Registry maps kinds to handlers. It is populated at startup and read by the drain loop.
type Registry struct {
	handlers map[Kind]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Kind]Handler),
	}
}

// Register binds a handler to kind, replacing any previous binding.
func (r *Registry) Register(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[kind] = h
}

// Get returns the handler for kind, or nil
func (r *Registry) Get(kind Kind) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.handlers[kind]
}

// Has reports whether kind has a handler
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.handlers[kind]
	return ok
}

// Kinds returns all registered kinds, sorted
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
