// Package tasks implements the task definition registry the meta agent
// dispatches against through the execute_task, list_tasks, and
// create_task tools.
package tasks

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// Registry holds named TaskDefinition values. The execute_task
// interceptor looks up a definition here when building a
// TaskExecutionRequest; list_tasks and create_task read and write it
// directly.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]models.TaskDefinition
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]models.TaskDefinition)}
}

// Register adds or replaces a task definition.
func (r *Registry) Register(def models.TaskDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
}

// Get looks up a task definition by ID.
func (r *Registry) Get(id string) (models.TaskDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// List returns every registered task definition, sorted by ID for
// stable output.
func (r *Registry) List() []models.TaskDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.TaskDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Create assigns an ID (if unset) and creation time to def, registers
// it, and returns the stored definition.
func (r *Registry) Create(def models.TaskDefinition, newID func() string) (models.TaskDefinition, error) {
	if def.Name == "" {
		return models.TaskDefinition{}, fmt.Errorf("task definition requires a name")
	}
	if def.Instructions == "" {
		return models.TaskDefinition{}, fmt.Errorf("task definition requires instructions")
	}
	if def.ID == "" {
		def.ID = newID()
	}
	def.CreatedAt = time.Now()
	r.Register(def)
	return def, nil
}
