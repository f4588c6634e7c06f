// Package registry provides the keyed registries behind taglib resolution.
//
// A Registry maps a Key (namespace prefix plus local name) to a value,
// typically a node factory. Registries can be scoped: a scoped registry
// answers from its own entries first and falls back to its parent, which is
// how a taglib declared in one document stays invisible to its siblings
// while remaining visible to the containers nested inside it.
package registry

import (
	"sort"
	"strings"
	"sync"
)

// Key identifies a tag by namespace prefix and local name.
type Key struct {
	Prefix string
	Name   string
}

// NewKey creates a key.
func NewKey(prefix, name string) Key {
	return Key{Prefix: prefix, Name: name}
}

// ParseKey splits "prefix:name".
func ParseKey(s string) (Key, bool) {
	prefix, name, ok := strings.Cut(s, ":")
	if !ok || prefix == "" || name == "" {
		return Key{}, false
	}
	return Key{Prefix: prefix, Name: name}, true
}

// String returns prefix:name.
func (k Key) String() string {
	return k.Prefix + ":" + k.Name
}

// Registry is a concurrency-safe map from Key to T with an optional parent.
type Registry[T any] struct {
	entries map[Key]T
	parent  *Registry[T]
	mutex   sync.RWMutex
}

// New creates an empty root registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		entries: make(map[Key]T),
	}
}

// NewScoped creates an empty registry that falls back to parent.
func NewScoped[T any](parent *Registry[T]) *Registry[T] {
	r := New[T]()
	r.parent = parent
	return r
}

// Parent returns the fallback registry, nil for a root.
func (r *Registry[T]) Parent() *Registry[T] {
	return r.parent
}

// Register adds or replaces an entry in this scope. It reports whether an
// entry for the key already existed in this scope.
func (r *Registry[T]) Register(key Key, value T) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, exists := r.entries[key]
	r.entries[key] = value
	return exists
}

// Get resolves a key through this scope and its parents.
func (r *Registry[T]) Get(key Key) (T, bool) {
	for cur := r; cur != nil; cur = cur.parent {
		cur.mutex.RLock()
		value, ok := cur.entries[key]
		cur.mutex.RUnlock()
		if ok {
			return value, true
		}
	}
	var zero T
	return zero, false
}

// Has reports whether key resolves.
func (r *Registry[T]) Has(key Key) bool {
	_, ok := r.Get(key)
	return ok
}

// HasPrefix reports whether any resolvable key uses prefix.
func (r *Registry[T]) HasPrefix(prefix string) bool {
	for cur := r; cur != nil; cur = cur.parent {
		cur.mutex.RLock()
		for key := range cur.entries {
			if key.Prefix == prefix {
				cur.mutex.RUnlock()
				return true
			}
		}
		cur.mutex.RUnlock()
	}
	return false
}

// Remove deletes key from this scope only.
func (r *Registry[T]) Remove(key Key) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.entries, key)
}

// Keys returns every resolvable key, sorted.
func (r *Registry[T]) Keys() []Key {
	seen := make(map[Key]struct{})
	for cur := r; cur != nil; cur = cur.parent {
		cur.mutex.RLock()
		for key := range cur.entries {
			seen[key] = struct{}{}
		}
		cur.mutex.RUnlock()
	}

	keys := make([]Key, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Prefix != keys[j].Prefix {
			return keys[i].Prefix < keys[j].Prefix
		}
		return keys[i].Name < keys[j].Name
	})
	return keys
}

// Count returns the number of entries in this scope, parents excluded.
func (r *Registry[T]) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.entries)
}
