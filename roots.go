package mcp

import (
	"slices"
	"sync"
)

// RootsRegistry is a mutable, ordered collection of filesystem roots exposed
// by a client. Mutations trigger a roots list-changed notification on every
// session the registry is attached to. It is safe for concurrent use.
type RootsRegistry struct {
	mu    sync.RWMutex
	roots []Root

	changes *changeNotifier
}

// NewRootsRegistry creates a registry pre-populated with the given roots, in
// order.
func NewRootsRegistry(roots ...Root) *RootsRegistry {
	return &RootsRegistry{
		roots:   slices.Clone(roots),
		changes: newChangeNotifier(),
	}
}

// Add appends a root to the registry. A root with the same URI is replaced
// and moved to the end, as the whole entry counts as its identity.
func (r *RootsRegistry) Add(root Root) {
	r.mu.Lock()
	r.roots = slices.DeleteFunc(r.roots, func(existing Root) bool {
		return existing.URI == root.URI
	})
	r.roots = append(r.roots, root)
	r.mu.Unlock()

	r.changes.notify()
}

// Remove deletes the root with the given URI, reporting whether it was
// present.
func (r *RootsRegistry) Remove(uri string) bool {
	r.mu.Lock()
	before := len(r.roots)
	r.roots = slices.DeleteFunc(r.roots, func(existing Root) bool {
		return existing.URI == uri
	})
	removed := len(r.roots) != before
	r.mu.Unlock()

	if removed {
		r.changes.notify()
	}
	return removed
}

// Roots returns a snapshot of the current roots in insertion order.
func (r *RootsRegistry) Roots() []Root {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.roots)
}
