// ABOUTME: Immutable registration records and their ordering.
// ABOUTME: A record outranks another by priority, then by recency.

package services

import (
	"fmt"

	"github.com/2389/vault/plugins/core"
)

// RegistrationID identifies one registration for the life of the registry.
type RegistrationID uint64

// Registration is an immutable record of one provider offered by one owner.
type Registration struct {
	ID     RegistrationID
	Kind   core.Kind
	Handle core.Handle
	// Provider is the handle's name captured at registration time.
	Provider string
	Owner    string
	Priority core.Priority
	// Seq is the registry-wide registration order. Later registrations have
	// larger values.
	Seq uint64
}

func (r Registration) String() string {
	return fmt.Sprintf("#%d %s/%s by %s (%s)", r.ID, r.Kind, r.Provider, r.Owner, r.Priority)
}

// detached drops the handle from a record that has left the registry so the
// registry never hands a removed provider back out.
func (r Registration) detached() Registration {
	r.Handle = nil
	return r
}

// outranks reports whether r wins resolution over o: higher tier first, then
// the more recent registration.
func (r Registration) outranks(o Registration) bool {
	if r.Priority != o.Priority {
		return r.Priority > o.Priority
	}
	return r.Seq > o.Seq
}

// best returns the winning registration among records.
func best(records []Registration) (Registration, bool) {
	if len(records) == 0 {
		return Registration{}, false
	}
	winner := records[0]
	for _, r := range records[1:] {
		if r.outranks(winner) {
			winner = r
		}
	}
	return winner, true
}
