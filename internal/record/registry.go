package record

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoFactory is returned when no Factory is registered for a type tag.
var ErrNoFactory = errors.New("no factory registered")

// Factory rebuilds a typed object from a decoded snapshot.
type Factory func(attrs *Attributes) (any, error)

// Registry maps type tags to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs f for typeTag, replacing any previous factory.
func (r *Registry) Register(typeTag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[typeTag] = f
}

func (r *Registry) Lookup(typeTag string) (Factory, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typeTag]
	return f, ok
}

// Build rebuilds the object identified by id from attrs.
func (r *Registry) Build(id Identity, attrs *Attributes) (any, error) {
	f, ok := r.Lookup(id.TypeTag)
	if !ok || f == nil {
		return nil, fmt.Errorf("build %s: %w for type %q", id, ErrNoFactory, id.TypeTag)
	}
	obj, err := f(attrs)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", id, err)
	}
	return obj, nil
}
