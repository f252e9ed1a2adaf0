// Package scope holds the state of one continuous recording stream: its
// configuration, the identity registries that give nodes, stylesheets,
// events and strings their small integer ids, and the shadow root
// callbacks.
package scope

import (
	"runtime"
	"sync"
	"weak"
)

// Registry assigns monotonically increasing ids to keys, starting at 0.
// Ids are never removed or reused.
type Registry[K comparable] struct {
	mu   sync.Mutex
	ids  map[K]int
	next int
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{ids: make(map[K]int)}
}

// GetOrInsert returns the id of key, assigning the next id on first use.
// inserted reports whether the id was assigned by this call.
func (r *Registry[K]) GetOrInsert(key K) (id int, inserted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[key]; ok {
		return id, false
	}
	id = r.next
	r.next++
	r.ids[key] = id
	return id, true
}

// Get returns the id of key without assigning one.
func (r *Registry[K]) Get(key K) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[key]
	return id, ok
}

// Next returns the id the next insertion will receive.
func (r *Registry[K]) Next() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Len returns the number of live entries.
func (r *Registry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *Registry[K]) evict(key K) {
	r.mu.Lock()
	delete(r.ids, key)
	r.mu.Unlock()
}

// WeakRegistry is a Registry keyed by object identity that does not keep its
// keys alive. Entries of collected objects are evicted; their ids stay
// retired.
type WeakRegistry[T any] struct {
	reg *Registry[weak.Pointer[T]]
}

// NewWeakRegistry creates an empty weak registry.
func NewWeakRegistry[T any]() *WeakRegistry[T] {
	return &WeakRegistry[T]{reg: NewRegistry[weak.Pointer[T]]()}
}

// GetOrInsert returns the id of p, assigning the next id on first use.
func (w *WeakRegistry[T]) GetOrInsert(p *T) (int, bool) {
	key := weak.Make(p)
	id, inserted := w.reg.GetOrInsert(key)
	if inserted {
		reg := w.reg
		runtime.AddCleanup(p, func(k weak.Pointer[T]) { reg.evict(k) }, key)
	}
	return id, inserted
}

// Get returns the id of p without assigning one.
func (w *WeakRegistry[T]) Get(p *T) (int, bool) {
	if p == nil {
		return 0, false
	}
	return w.reg.Get(weak.Make(p))
}

// Retire forgets p. Its id is not reused: a later GetOrInsert assigns p a
// new one.
func (w *WeakRegistry[T]) Retire(p *T) {
	if p != nil {
		w.reg.evict(weak.Make(p))
	}
}

// Has reports whether p has an id.
func (w *WeakRegistry[T]) Has(p *T) bool {
	_, ok := w.Get(p)
	return ok
}

// Next returns the id the next insertion will receive.
func (w *WeakRegistry[T]) Next() int { return w.reg.Next() }

// Len returns the number of live entries.
func (w *WeakRegistry[T]) Len() int { return w.reg.Len() }
