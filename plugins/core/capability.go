// ABOUTME: Capability kinds, priority tiers, and the tagged Offer type.
// ABOUTME: Offers tie a handle to exactly one capability contract at compile time.

package core

import (
	"fmt"
	"strings"
)

// Kind identifies one of the three capability contracts.
type Kind int

// Capability kinds. The set is closed.
const (
	KindEconomy Kind = iota + 1
	KindPermission
	KindChat
)

// Kinds returns every capability kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindEconomy, KindPermission, KindChat}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindEconomy && k <= KindChat
}

func (k Kind) String() string {
	switch k {
	case KindEconomy:
		return "economy"
	case KindPermission:
		return "permission"
	case KindChat:
		return "chat"
	default:
		return "unknown"
	}
}

// ParseKind converts a name like "economy" or "Permission" to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(strings.TrimSpace(s), k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown capability kind %q", s)
}

// Priority is the tier a provider declares for itself. Higher wins.
type Priority int

// Priority tiers. PriorityUnset means the provider did not declare one and
// the host default applies.
const (
	PriorityUnset Priority = iota
	PriorityLowest
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
)

// Valid reports whether p is a concrete tier (not PriorityUnset).
func (p Priority) Valid() bool {
	return p >= PriorityLowest && p <= PriorityHighest
}

func (p Priority) String() string {
	switch p {
	case PriorityUnset:
		return "unset"
	case PriorityLowest:
		return "lowest"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityHighest:
		return "highest"
	default:
		return "unknown"
	}
}

// ParsePriority converts a tier name to a Priority. Matching is case-insensitive.
func ParsePriority(s string) (Priority, error) {
	for p := PriorityLowest; p <= PriorityHighest; p++ {
		if strings.EqualFold(strings.TrimSpace(s), p.String()) {
			return p, nil
		}
	}
	return PriorityUnset, fmt.Errorf("unknown priority %q", s)
}

// UnmarshalText lets Priority be decoded from env vars and YAML.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText renders the tier name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Handle is the part of the contract every provider shares.
type Handle interface {
	// Name is the provider's display name, e.g. "GroupManager".
	Name() string
	// IsEnabled reports whether the provider is currently usable.
	IsEnabled() bool
}

// Offer is a handle tagged with the capability it implements.
// Build one with OfferEconomy, OfferPermission, or OfferChat.
type Offer struct {
	kind     Kind
	handle   Handle
	priority Priority
}

// OfferEconomy offers h as an Economy provider.
func OfferEconomy(h Economy, p Priority) Offer {
	return Offer{kind: KindEconomy, handle: h, priority: p}
}

// OfferPermission offers h as a Permission provider.
func OfferPermission(h Permission, p Priority) Offer {
	return Offer{kind: KindPermission, handle: h, priority: p}
}

// OfferChat offers h as a Chat provider.
func OfferChat(h Chat, p Priority) Offer {
	return Offer{kind: KindChat, handle: h, priority: p}
}

// Kind returns the capability the offer is tagged with.
func (o Offer) Kind() Kind { return o.kind }

// Handle returns the offered provider, or nil for an empty offer.
func (o Offer) Handle() Handle { return o.handle }

// Priority returns the declared tier, possibly PriorityUnset.
func (o Offer) Priority() Priority { return o.priority }

// WithPriority returns a copy of the offer with p as its tier.
func (o Offer) WithPriority(p Priority) Offer {
	o.priority = p
	return o
}

func (o Offer) String() string {
	name := "<nil>"
	if o.handle != nil {
		name = o.handle.Name()
	}
	return fmt.Sprintf("%s:%s@%s", o.kind, name, o.priority)
}
