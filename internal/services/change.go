// ABOUTME: Change notifications published after every registry commit.
// ABOUTME: Rebinds record which registration a kind moved from and to.

package services

import "github.com/2389/vault/plugins/core"

// Op is the kind of registry mutation.
type Op int

const (
	OpRegistered Op = iota + 1
	OpUnregistered
)

func (o Op) String() string {
	switch o {
	case OpRegistered:
		return "registered"
	case OpUnregistered:
		return "unregistered"
	default:
		return "unknown"
	}
}

// Change describes one committed registry mutation.
type Change struct {
	Op    Op
	Owner string
	// Records holds the added or removed registrations. Removed records carry
	// no handle.
	Records []Registration
	// Rebinds lists the kinds whose resolved binding changed.
	Rebinds []Rebind
}

// Rebind records a binding moving from one provider to another. A nil side
// means the kind was (or became) unbound. Neither side carries a handle.
type Rebind struct {
	Kind core.Kind
	From *Registration
	To   *Registration
}

// rebinds compares the winners of every kind whose generation moved.
func rebinds(prev, next *snapshot) []Rebind {
	var out []Rebind
	for _, kind := range core.Kinds() {
		if prev.gens[kind] == next.gens[kind] {
			continue
		}
		before, hadBefore := best(prev.records[kind])
		after, hasAfter := best(next.records[kind])
		if hadBefore == hasAfter && before.ID == after.ID {
			continue
		}
		rb := Rebind{Kind: kind}
		if hadBefore {
			b := before.detached()
			rb.From = &b
		}
		if hasAfter {
			a := after.detached()
			rb.To = &a
		}
		out = append(out, rb)
	}
	return out
}
