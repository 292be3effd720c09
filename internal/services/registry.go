// ABOUTME: Copy-on-write provider registry keyed by capability kind.
// ABOUTME: Readers load one atomic snapshot; writers serialize and queue change delivery.

// Package services holds the provider registry and the binding resolver that
// picks one provider per capability kind.
//
// The registry keeps an immutable snapshot behind an atomic pointer. Writers
// serialize on a mutex, build the next snapshot, and swap it in; readers load
// the pointer and never block. A reader therefore sees an owner's records
// across every kind either all present or all gone.
package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/2389/vault/plugins/core"
)

// snapshot is one immutable view of the registry. Slices are never modified
// after the snapshot is published.
type snapshot struct {
	records map[core.Kind][]Registration // per kind, ascending Seq
	// gens counts mutations per kind. A kind's generation changes exactly
	// when its record set changes.
	gens map[core.Kind]uint64
}

func emptySnapshot() *snapshot {
	s := &snapshot{
		records: make(map[core.Kind][]Registration, len(core.Kinds())),
		gens:    make(map[core.Kind]uint64, len(core.Kinds())),
	}
	return s
}

// clone copies the top-level maps. Record slices are shared until a writer
// replaces the slice for a kind it touches.
func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		records: make(map[core.Kind][]Registration, len(s.records)),
		gens:    make(map[core.Kind]uint64, len(s.gens)),
	}
	for k, v := range s.records {
		next.records[k] = v
	}
	for k, v := range s.gens {
		next.gens[k] = v
	}
	return next
}

// Registry stores provider registrations. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu      sync.Mutex // serializes writers
	state   atomic.Pointer[snapshot]
	seq     uint64                         // guarded by mu
	handles map[core.Handle]RegistrationID // guarded by mu
	byID    map[RegistrationID]core.Kind   // guarded by mu

	queueMu  sync.Mutex
	pending  []Change // guarded by queueMu, commit order
	draining bool     // guarded by queueMu

	subsMu   sync.RWMutex
	subs     map[int]func(Change)
	subOrder []int
	nextSub  int

	defaultPriority core.Priority
	log             logrus.FieldLogger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// WithDefaultPriority sets the tier used for offers that declare none.
func WithDefaultPriority(p core.Priority) RegistryOption {
	return func(r *Registry) {
		if p.Valid() {
			r.defaultPriority = p
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		handles:         make(map[core.Handle]RegistrationID),
		byID:            make(map[RegistrationID]core.Kind),
		subs:            make(map[int]func(Change)),
		defaultPriority: core.PriorityNormal,
		log:             logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.state.Store(emptySnapshot())
	return r
}

// DefaultPriority is the tier given to offers declared with PriorityUnset.
func (r *Registry) DefaultPriority() core.Priority {
	return r.defaultPriority
}

func (r *Registry) load() *snapshot {
	return r.state.Load()
}

// Register records offer under owner and returns its id. It fails only when
// the offer does not validate; a valid offer is always accepted, including a
// second offer of the same kind from the same owner.
func (r *Registry) Register(owner string, offer core.Offer) (RegistrationID, error) {
	name, err := validate(owner, offer)
	if err != nil {
		return 0, err
	}

	priority := offer.Priority()
	switch {
	case priority == core.PriorityUnset:
		priority = r.defaultPriority
	case !priority.Valid():
		return 0, fmt.Errorf("%w: %d", ErrInvalidPriority, int(priority))
	}

	rec, err := r.insert(owner, name, offer.Kind(), offer.Handle(), priority)
	if err != nil {
		return 0, err
	}
	r.drain()

	r.log.WithFields(logrus.Fields{
		"registration_id": rec.ID,
		"kind":            rec.Kind.String(),
		"provider":        name,
		"owner":           owner,
		"priority":        priority.String(),
	}).Debug("provider registered")
	return rec.ID, nil
}

func (r *Registry) insert(owner, name string, kind core.Kind, handle core.Handle, priority core.Priority) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.handles[handle]; ok {
		return Registration{}, fmt.Errorf("%w: %s already registered as #%d", ErrDuplicateHandle, name, existing)
	}

	r.seq++
	rec := Registration{
		ID:       RegistrationID(r.seq),
		Kind:     kind,
		Handle:   handle,
		Provider: name,
		Owner:    owner,
		Priority: priority,
		Seq:      r.seq,
	}

	prev := r.load()
	next := prev.clone()
	records := make([]Registration, 0, len(prev.records[kind])+1)
	records = append(records, prev.records[kind]...)
	next.records[kind] = append(records, rec)
	next.gens[kind]++

	r.handles[handle] = rec.ID
	r.byID[rec.ID] = kind
	r.publish(prev, next, Change{
		Op:      OpRegistered,
		Owner:   owner,
		Records: []Registration{rec},
	})
	return rec, nil
}

// Unregister removes the registration with id. Unknown ids are ignored; the
// return value reports whether anything was removed.
func (r *Registry) Unregister(id RegistrationID) bool {
	removed, ok := r.remove(id)
	if !ok {
		return false
	}
	r.drain()

	r.log.WithFields(logrus.Fields{
		"registration_id": id,
		"kind":            removed.Kind.String(),
		"provider":        removed.Provider,
		"owner":           removed.Owner,
	}).Debug("provider unregistered")
	return true
}

func (r *Registry) remove(id RegistrationID) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind, ok := r.byID[id]
	if !ok {
		return Registration{}, false
	}

	prev := r.load()
	next := prev.clone()
	var removed Registration
	kept := make([]Registration, 0, len(prev.records[kind]))
	for _, rec := range prev.records[kind] {
		if rec.ID == id {
			removed = rec
			continue
		}
		kept = append(kept, rec)
	}
	next.records[kind] = kept
	next.gens[kind]++

	delete(r.handles, removed.Handle)
	delete(r.byID, id)
	removed = removed.detached()
	r.publish(prev, next, Change{
		Op:      OpUnregistered,
		Owner:   removed.Owner,
		Records: []Registration{removed},
	})
	return removed, true
}

// UnregisterAll removes every registration owned by owner, across all kinds,
// in a single snapshot swap. It returns the removed records, without handles.
// Calling it for an owner with nothing registered is a no-op.
func (r *Registry) UnregisterAll(owner string) []Registration {
	removed := r.removeOwner(owner)
	if len(removed) == 0 {
		return nil
	}
	r.drain()

	r.log.WithFields(logrus.Fields{
		"owner":   owner,
		"removed": len(removed),
	}).Debug("owner unregistered")
	return removed
}

func (r *Registry) removeOwner(owner string) []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.load()
	var next *snapshot
	var removed []Registration

	for _, kind := range core.Kinds() {
		records := prev.records[kind]
		hit := false
		for _, rec := range records {
			if rec.Owner == owner {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		if next == nil {
			next = prev.clone()
		}
		kept := make([]Registration, 0, len(records))
		for _, rec := range records {
			if rec.Owner == owner {
				delete(r.handles, rec.Handle)
				delete(r.byID, rec.ID)
				removed = append(removed, rec.detached())
				continue
			}
			kept = append(kept, rec)
		}
		next.records[kind] = kept
		next.gens[kind]++
	}

	if next == nil {
		return nil
	}
	r.publish(prev, next, Change{
		Op:      OpUnregistered,
		Owner:   owner,
		Records: removed,
	})
	return removed
}

// publish swaps in next and queues change for delivery. The caller must hold
// r.mu, so the queue is in commit order.
func (r *Registry) publish(prev, next *snapshot, change Change) {
	r.state.Store(next)
	change.Rebinds = rebinds(prev, next)

	r.queueMu.Lock()
	r.pending = append(r.pending, change)
	r.queueMu.Unlock()
}

// drain delivers queued changes one at a time. Only one goroutine drains at
// once; a writer that finds a drain in progress, including a subscriber
// writing back into the registry, leaves its change to that drainer.
func (r *Registry) drain() {
	r.queueMu.Lock()
	if r.draining {
		r.queueMu.Unlock()
		return
	}
	r.draining = true
	for len(r.pending) > 0 {
		change := r.pending[0]
		r.pending[0] = Change{}
		r.pending = r.pending[1:]
		r.queueMu.Unlock()

		r.notify(change)

		r.queueMu.Lock()
	}
	r.pending = nil
	r.draining = false
	r.queueMu.Unlock()
}

func (r *Registry) notify(change Change) {
	r.subsMu.RLock()
	subs := make([]func(Change), 0, len(r.subs))
	for _, id := range r.subOrder {
		subs = append(subs, r.subs[id])
	}
	r.subsMu.RUnlock()

	for _, fn := range subs {
		r.deliver(fn, change)
	}
}

func (r *Registry) deliver(fn func(Change), change Change) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("panic", p).Error("registry subscriber panicked")
		}
	}()
	fn(change)
}

// Subscribe registers fn to receive every committed change, in commit order,
// after the change is visible to readers. Subscribers run one change at a
// time. When no other delivery is in progress, the mutating call returns only
// after every subscriber has seen its change. A change made from inside fn is
// queued and delivered once fn returns. The returned function removes the
// subscription.
func (r *Registry) Subscribe(fn func(Change)) (unsubscribe func()) {
	r.subsMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subOrder = append(r.subOrder, id)
	r.subsMu.Unlock()

	return func() {
		r.subsMu.Lock()
		defer r.subsMu.Unlock()
		if _, ok := r.subs[id]; !ok {
			return
		}
		delete(r.subs, id)
		for i, sid := range r.subOrder {
			if sid == id {
				r.subOrder = append(r.subOrder[:i:i], r.subOrder[i+1:]...)
				break
			}
		}
	}
}

// Providers lists the registrations for kind, best first: priority
// descending, then most recent first.
func (r *Registry) Providers(kind core.Kind) []Registration {
	records := r.load().records[kind]
	out := make([]Registration, len(records))
	copy(out, records)
	sort.Slice(out, func(i, j int) bool {
		return out[i].outranks(out[j])
	})
	return out
}

// All returns every kind's providers, best first, read from a single
// snapshot so the lists are mutually consistent.
func (r *Registry) All() map[core.Kind][]Registration {
	snap := r.load()
	out := make(map[core.Kind][]Registration, len(core.Kinds()))
	for _, kind := range core.Kinds() {
		records := make([]Registration, len(snap.records[kind]))
		copy(records, snap.records[kind])
		sort.Slice(records, func(i, j int) bool {
			return records[i].outranks(records[j])
		})
		out[kind] = records
	}
	return out
}

// Lookup returns the registration with id if it is still registered.
func (r *Registry) Lookup(id RegistrationID) (Registration, bool) {
	snap := r.load()
	for _, kind := range core.Kinds() {
		for _, rec := range snap.records[kind] {
			if rec.ID == id {
				return rec, true
			}
		}
	}
	return Registration{}, false
}

// Owners returns the sorted set of owners with at least one registration.
func (r *Registry) Owners() []string {
	snap := r.load()
	seen := make(map[string]struct{})
	for _, records := range snap.records {
		for _, rec := range records {
			seen[rec.Owner] = struct{}{}
		}
	}
	owners := make([]string, 0, len(seen))
	for owner := range seen {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// Len returns the total number of registrations.
func (r *Registry) Len() int {
	n := 0
	for _, records := range r.load().records {
		n += len(records)
	}
	return n
}

// validate checks an offer before any lock is taken, since it calls into
// provider code. It returns the provider name.
func validate(owner string, offer core.Offer) (name string, err error) {
	if strings.TrimSpace(owner) == "" {
		return "", fmt.Errorf("%w: owner is empty", ErrInvalidOwner)
	}
	if !offer.Kind().Valid() {
		return "", fmt.Errorf("%w: unknown capability kind %d", ErrInvalidHandle, int(offer.Kind()))
	}

	h := offer.Handle()
	if h == nil {
		return "", fmt.Errorf("%w: nil %s handle", ErrInvalidHandle, offer.Kind())
	}
	// Handle identity is a map key. A value that cannot be hashed would panic
	// later with the writer lock held.
	if !hashable(h) {
		return "", fmt.Errorf("%w: %T is not hashable, register a pointer", ErrInvalidHandle, h)
	}

	defer func() {
		if p := recover(); p != nil {
			name = ""
			err = fmt.Errorf("%w: %T panicked in Name(): %v", ErrInvalidHandle, h, p)
		}
	}()
	name = strings.TrimSpace(h.Name())
	if name == "" {
		return "", fmt.Errorf("%w: %s handle %T has no name", ErrInvalidHandle, offer.Kind(), h)
	}
	return name, nil
}

// hashable reports whether h can be used as a map key. Comparable types such
// as structs with interface fields still panic when those fields hold a slice,
// map, or func, so the check hashes the actual value.
func hashable(h core.Handle) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_ = map[core.Handle]struct{}{h: {}}
	return true
}
