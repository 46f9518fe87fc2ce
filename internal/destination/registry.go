package destination

import (
	"fmt"
	"sync"
)

// Registry selects the Executor for a repo's resolved Destination kind.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds executor under its own Name().
func (r *Registry) Register(executor Executor) error {
	if executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}
	name := executor.Name()
	if name == "" {
		return fmt.Errorf("executor name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = executor
	return nil
}

// Get returns the named executor.
func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("executor %q not registered", name)
	}
	return e, nil
}
