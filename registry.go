package declare

import (
	"fmt"
	"strings"
	"sync"
)

// Registry is the closed set of constructors a store may build and hydrate.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	order        []string
}

// NewRegistry registers constructors in order.
func NewRegistry(constructors ...Constructor) (*Registry, error) {
	r := &Registry{constructors: make(map[string]Constructor, len(constructors))}
	for _, c := range constructors {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error.
func MustRegistry(constructors ...Constructor) *Registry {
	r, err := NewRegistry(constructors...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds c. Identities must be non-empty and unique.
func (r *Registry) Register(c Constructor) error {
	if c == nil {
		return ErrNilConstructor
	}
	identity := strings.TrimSpace(c.Identity())
	if identity == "" {
		return ErrEmptyIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.constructors == nil {
		r.constructors = map[string]Constructor{}
	}
	if _, exists := r.constructors[identity]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConstructor, identity)
	}
	r.constructors[identity] = c
	r.order = append(r.order, identity)
	return nil
}

// Lookup returns the constructor registered under identity.
func (r *Registry) Lookup(identity string) (Constructor, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[identity]
	return c, ok
}

// Identities lists registered identities in registration order.
func (r *Registry) Identities() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// CheckName reports ErrIdentifierCollision when two registered constructors
// would derive the same id from name.
func (r *Registry) CheckName(name string) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	owners := make(map[string]string, len(r.order))
	for _, identity := range r.order {
		id := r.constructors[identity].GenerateID(name)
		if other, taken := owners[id]; taken {
			return fmt.Errorf("%w: %q from %s and %s", ErrIdentifierCollision, id, other, identity)
		}
		owners[id] = identity
	}
	return nil
}
