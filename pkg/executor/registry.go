package executor

import (
	"fmt"
	"sync"

	"github.com/smilemakc/convoflow/pkg/models"
)

// Registry implements the Manager interface with thread-safe executor
// registration keyed by action name.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates a new executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

// NewManager creates a new executor manager. Built-in executors are
// registered separately via RegisterBuiltins.
func NewManager() Manager {
	return NewRegistry()
}

// Register registers an executor for a specific action name.
func (r *Registry) Register(actionName string, executor Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actionName == "" {
		return fmt.Errorf("action name cannot be empty")
	}
	if executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}

	r.executors[actionName] = executor
	return nil
}

// Get retrieves an executor by action name.
func (r *Registry) Get(actionName string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[actionName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrExecutorNotFound, actionName)
	}
	return executor, nil
}

// Has checks if an executor is registered for the given action name.
func (r *Registry) Has(actionName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.executors[actionName]
	return ok
}

// List returns all registered action names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	return names
}

// Unregister removes an executor for a specific action name.
func (r *Registry) Unregister(actionName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executors[actionName]; !ok {
		return fmt.Errorf("%w: %s", models.ErrExecutorNotFound, actionName)
	}
	delete(r.executors, actionName)
	return nil
}
