package plugin

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicatePlugin is returned when a plugin ID is registered twice.
var ErrDuplicatePlugin = errors.New("plugin: duplicate plugin id")

// ErrPluginNotFound is returned when a requested plugin is not registered.
var ErrPluginNotFound = errors.New("plugin: not found")

type registration struct {
	meta Metadata
	impl Plugin
}

// Registry holds the registered content providers. Registration happens
// once at startup before the pipeline runs; lookups are concurrency-safe.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds a provider under meta.ID. The ID must be unique and
// non-empty.
func (r *Registry) Register(meta Metadata, impl Plugin) error {
	if meta.ID == "" {
		return fmt.Errorf("plugin: empty plugin id")
	}
	if impl == nil {
		return fmt.Errorf("plugin: nil implementation for %q", meta.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[meta.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicatePlugin, meta.ID)
	}
	r.entries[meta.ID] = registration{meta: meta, impl: impl}
	r.order = append(r.order, meta.ID)
	return nil
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPluginNotFound, id)
	}
	return reg.impl, nil
}

// Meta returns the metadata registered under id.
func (r *Registry) Meta(id string) (Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[id]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %q", ErrPluginNotFound, id)
	}
	return reg.meta, nil
}

// List returns metadata for all registered providers in registration order.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].meta)
	}
	return out
}
