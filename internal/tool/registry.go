package tool

import (
	"sort"
	"sync"
)

// Contract is the per-tool record of defaults and the safe-to-smoke flag.
type Contract struct {
	Name     string
	Defaults map[string]any
	Safe     bool
}

// Registry indexes contracts by tool identity token and by tool name.
// Both indices always point at the same *Contract.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Contract
	byName map[string]*Contract
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Contract),
		byName: make(map[string]*Contract),
	}
}

// Register stores c under id and c.Name, replacing any earlier contract for
// the same tool.
func (r *Registry) Register(id string, c Contract) *Contract {
	stored := &Contract{Name: c.Name, Defaults: copyMap(c.Defaults), Safe: c.Safe}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byID[id]; ok && old.Name != c.Name {
		delete(r.byName, old.Name)
	}
	r.byID[id] = stored
	r.byName[c.Name] = stored
	return stored
}

func (r *Registry) ByID(id string) (*Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

func (r *Registry) ByName(name string) (*Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// SafeNames lists the tools flagged safe, sorted.
func (r *Registry) SafeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0)
	for name, c := range r.byName {
		if c.Safe {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Contracts returns a copy of the name index.
func (r *Registry) Contracts() map[string]Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Contract, len(r.byName))
	for name, c := range r.byName {
		out[name] = Contract{Name: c.Name, Defaults: copyMap(c.Defaults), Safe: c.Safe}
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
