package manager

import (
	"slices"
	"strings"
	"sync"
)

// registry stores configured model entries.
type registry struct {
	models map[string]*entry
	mu     sync.RWMutex
}

func newRegistry() *registry {
	return &registry{
		models: make(map[string]*entry),
	}
}

func (r *registry) set(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models[e.id] = e
}

func (r *registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.models[id]
	return e, ok
}

// list returns every entry sorted by id.
func (r *registry) list() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*entry, 0, len(r.models))
	for _, e := range r.models {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *entry) int { return strings.Compare(a.id, b.id) })

	return entries
}

func (r *registry) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.models, id)
}
