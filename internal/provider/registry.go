package provider

import (
	"fmt"
	"sync"

	"github.com/lepinkainen/bookmeta/internal/errors"
)

// Registry maps provider identifiers to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[ID]Adapter
	order    []ID
}

// NewRegistry creates a registry pre-populated with adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[ID]Adapter)}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds an adapter. Registering the same provider twice is an error.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.ID()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("provider %s already registered", id)
	}
	r.adapters[id] = a
	r.order = append(r.order, id)
	return nil
}

// Get returns the adapter for id or a ProviderNotRegisteredError.
func (r *Registry) Get(id ID) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	if !ok {
		return nil, errors.NewProviderNotRegisteredError(string(id))
	}
	return a, nil
}

// IDs returns registered providers in registration order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ID, len(r.order))
	copy(out, r.order)
	return out
}
