package plugin

import (
	"fmt"
	"sort"
	"sync"

	"TubeDigest/internal/event"
)

// Factory builds a plugin instance wired to the bus with its merged
// configuration block.
type Factory func(bus *event.Bus, cfg map[string]any) (Plugin, error)

// Registry maps manifest entry points to plugin factories. Plugin units call
// Register from init so that dropping a manifest file into the plugin
// directory is all the wiring a deployment needs.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a factory to an entry point key.
func (r *Registry) Register(entryPoint string, factory Factory) error {
	if entryPoint == "" {
		return fmt.Errorf("entry point cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for %s cannot be nil", entryPoint)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[entryPoint]; exists {
		return fmt.Errorf("entry point %s already registered", entryPoint)
	}
	r.factories[entryPoint] = factory
	return nil
}

// Lookup resolves an entry point to its factory.
func (r *Registry) Lookup(entryPoint string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[entryPoint]
	return factory, ok
}

// EntryPoints returns the sorted registered entry point keys.
func (r *Registry) EntryPoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for key := range r.factories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by bundled plugins.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register binds a factory on the default registry. It panics on a duplicate
// entry point since that is a programming error surfaced at init time.
func Register(entryPoint string, factory Factory) {
	if err := defaultRegistry.Register(entryPoint, factory); err != nil {
		panic(err)
	}
}
