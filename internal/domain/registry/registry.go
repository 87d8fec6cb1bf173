// Package registry assigns dense indices to entity identifiers.
//
// Indices follow the sorted order of the registered ids so two registries
// built from the same set agree. A registry is rebuilt for every fit and
// never shrinks.
package registry

import (
	"fmt"
	"sort"
	"strings"
)

// Policy decides what happens when an unregistered id is looked up.
type Policy int

const (
	// Strict rejects unknown ids with an UnknownEntityError.
	Strict Policy = iota
	// Lenient maps unknown ids to the reserved unknown slot.
	Lenient
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	if p == Lenient {
		return "lenient"
	}
	return "strict"
}

// ParsePolicy accepts "strict" or "lenient".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	default:
		return Strict, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// Registry maps ids to dense indices in [0, Len()). Index Len() is the
// reserved unknown-entity slot.
type Registry struct {
	ids    []string
	index  map[string]int
	policy Policy
}

// New registers ids, dropping duplicates and empty strings.
func New(ids []string, opts ...Option) *Registry {
	r := &Registry{policy: Strict}
	for _, opt := range opts {
		opt(r)
	}

	uniq := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			uniq[id] = struct{}{}
		}
	}
	r.ids = make([]string, 0, len(uniq))
	for id := range uniq {
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)

	r.index = make(map[string]int, len(r.ids))
	for i, id := range r.ids {
		r.index[id] = i
	}
	return r
}

// Len is the number of registered ids.
func (r *Registry) Len() int { return len(r.ids) }

// Unknown is the index of the reserved unknown-entity slot.
func (r *Registry) Unknown() int { return len(r.ids) }

// Policy returns the configured lookup policy.
func (r *Registry) Policy() Policy { return r.policy }

// Contains reports whether id was registered.
func (r *Registry) Contains(id string) bool {
	_, ok := r.index[id]
	return ok
}

// Index resolves id. Unknown ids return the unknown slot under Lenient and
// an *UnknownEntityError under Strict.
func (r *Registry) Index(id string) (int, error) {
	if i, ok := r.index[id]; ok {
		return i, nil
	}
	if r.policy == Lenient {
		return r.Unknown(), nil
	}
	return -1, &UnknownEntityError{ID: id}
}

// ID returns the id at index i, or "" for the unknown slot.
func (r *Registry) ID(i int) string {
	if i < 0 || i >= len(r.ids) {
		return ""
	}
	return r.ids[i]
}

// IDs returns the registered ids in index order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}
