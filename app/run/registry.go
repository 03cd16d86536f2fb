package run

import (
	"fmt"
	"sync"
)

// Key identifies a run within its workspace.
type Key struct {
	WorkspaceID string
	RunID       string
}

// Registry is an in-memory aggregate registry for local execution and tests.
// It has an explicit lifecycle (construct, Reset); it is not a process-wide
// singleton and provides no durability.
type Registry struct {
	mu         sync.RWMutex
	aggregates map[Key]*Aggregate
}

func NewRegistry() *Registry {
	return &Registry{
		aggregates: make(map[Key]*Aggregate),
	}
}

func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregates = make(map[Key]*Aggregate)
}

func (r *Registry) Put(aggregate *Aggregate) error {
	run := aggregate.Run()
	if run.WorkspaceID == "" || run.RunID == "" {
		return fmt.Errorf("aggregate is missing its workspace or run id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregates[Key{WorkspaceID: run.WorkspaceID, RunID: run.RunID}] = aggregate
	return nil
}

func (r *Registry) Get(workspaceID, runID string) (*Aggregate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	aggregate, ok := r.aggregates[Key{WorkspaceID: workspaceID, RunID: runID}]
	return aggregate, ok
}

// List returns the aggregates of one workspace, workspace isolation being the
// registry's only query dimension.
func (r *Registry) List(workspaceID string) []*Aggregate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var aggregates []*Aggregate
	for key, aggregate := range r.aggregates {
		if key.WorkspaceID == workspaceID {
			aggregates = append(aggregates, aggregate)
		}
	}
	return aggregates
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.aggregates)
}
