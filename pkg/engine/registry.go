package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrEngineUnavailable reports that no engine is registered under a
// requested name.
var ErrEngineUnavailable = errors.New("inference engine unavailable")

// Registry manages the available inference engines by name.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]Engine)}
}

// Register adds an engine to the registry, replacing any engine with the
// same name.
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Name()] = e
}

// Get retrieves an engine by name. A lookup miss is fatal for the caller and
// carries install guidance.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.engines[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf(
		"%w: no engine registered as %q (available: %v); register an engine adapter at startup, the greedy reference engine ships in pkg/engine/greedy",
		ErrEngineUnavailable, name, r.listLocked())
}

// List returns the registered engine names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
