// ABOUTME: Binding resolver with a per-kind generation cache.
// ABOUTME: Entries for a replaced provider are dropped when the change is delivered.

package services

import (
	"sync/atomic"

	"github.com/2389/vault/plugins/core"
)

// cacheEntry is a resolution computed against one generation of a kind.
type cacheEntry struct {
	gen   uint64
	reg   Registration
	bound bool
}

// kindCache holds the cached resolution for one kind.
type kindCache struct {
	entry  atomic.Pointer[cacheEntry]
	misses atomic.Uint64
}

// Resolver picks the active provider per kind and caches the answer until a
// mutation touches that kind. Caches are independent, so a change to one
// kind never forces recomputation of another.
type Resolver struct {
	reg   *Registry
	cache map[core.Kind]*kindCache // fixed at construction, read-only after
}

// NewResolver creates a resolver over reg. The resolver subscribes to reg so
// a cached binding never outlives its provider's registration.
func NewResolver(reg *Registry) *Resolver {
	r := &Resolver{
		reg:   reg,
		cache: make(map[core.Kind]*kindCache, len(core.Kinds())),
	}
	for _, kind := range core.Kinds() {
		r.cache[kind] = &kindCache{}
	}
	reg.Subscribe(r.forget)
	return r
}

// Resolve returns the bound registration for kind: the highest priority tier,
// and among equal tiers the most recent registration. It returns false when
// nothing is registered for kind.
func (r *Resolver) Resolve(kind core.Kind) (Registration, bool) {
	kc, ok := r.cache[kind]
	if !ok {
		return Registration{}, false
	}

	snap := r.reg.load()
	gen := snap.gens[kind]
	if e := kc.entry.Load(); e != nil && e.gen == gen {
		return e.reg, e.bound
	}

	reg, bound := best(snap.records[kind])
	// A racing miss may store an older generation; the gen check above keeps
	// that from ever being served against a newer snapshot.
	e := &cacheEntry{gen: gen, reg: reg, bound: bound}
	kc.entry.Store(e)
	kc.misses.Add(1)
	// A change committed while this entry was computed may already have been
	// delivered, so forget would have missed it.
	if r.reg.load().gens[kind] != gen {
		kc.entry.CompareAndSwap(e, nil)
	}
	return reg, bound
}

// forget drops cached bindings whose provider lost its binding in change, so
// the cache stops referencing the handle.
func (r *Resolver) forget(change Change) {
	for _, rb := range change.Rebinds {
		if rb.From == nil {
			continue
		}
		kc, ok := r.cache[rb.Kind]
		if !ok {
			continue
		}
		if e := kc.entry.Load(); e != nil && e.bound && e.reg.ID == rb.From.ID {
			kc.entry.CompareAndSwap(e, nil)
		}
	}
}

// Misses returns how many times kind's resolution was recomputed.
func (r *Resolver) Misses(kind core.Kind) uint64 {
	kc, ok := r.cache[kind]
	if !ok {
		return 0
	}
	return kc.misses.Load()
}
