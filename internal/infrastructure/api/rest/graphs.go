package rest

import (
	"fmt"
	"sync"

	"github.com/smilemakc/convoflow/pkg/models"
)

// GraphRegistry is the process-wide cache of autocorrected graphs, keyed by
// graph ID. Graphs are immutable after load and safe to share across
// conversations; re-registering an ID replaces the cached graph
// (invalidation by version tag or explicit flush).
type GraphRegistry struct {
	mu     sync.RWMutex
	graphs map[string]*models.Graph
}

// NewGraphRegistry creates an empty registry.
func NewGraphRegistry() *GraphRegistry {
	return &GraphRegistry{graphs: make(map[string]*models.Graph)}
}

// Register caches a canonical graph under the given ID.
func (r *GraphRegistry) Register(id string, g *models.Graph) error {
	if id == "" {
		return fmt.Errorf("graph id cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[id] = g
	return nil
}

// Get looks a graph up by ID.
func (r *GraphRegistry) Get(id string) (*models.Graph, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[id]
	return g, ok
}

// Flush drops a cached graph, forcing the next registration to reload it.
func (r *GraphRegistry) Flush(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.graphs, id)
}

// List returns the registered graph IDs.
func (r *GraphRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	return ids
}
