package hostrt

import (
	"sync"

	"github.com/speakeasy-api/openapi/sequencedmap"
)

// Registry is a live name → module table. The process-global instance stands
// in for the interpreter's import table; traces read it, the host mutates it.
// Module import in the embedding host can run concurrently with a trace, so
// every read takes the lock.
type Registry struct {
	mu      sync.RWMutex
	modules *sequencedmap.Map[string, *Object]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: sequencedmap.New[string, *Object](),
	}
}

// Register installs or replaces a module binding.
func (r *Registry) Register(name string, mod *Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules.Set(name, mod)
}

// Lookup returns the module bound to name.
func (r *Registry) Lookup(name string) (*Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules.Get(name)
}

// Contains reports whether name is bound.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the bound module names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, r.modules.Len())
	for name := range r.modules.All() {
		names = append(names, name)
	}
	return names
}

// Len returns the number of bound modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules.Len()
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// Modules returns the process-global module registry.
func Modules() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}
