// ABOUTME: Translates host plugin lifecycle events into registry mutations.
// ABOUTME: Enable registers a plugin's offers, disable and shutdown remove them.

package lifecycle

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/2389/vault/internal/services"
	"github.com/2389/vault/plugins/core"
)

// Event is a host lifecycle notification. The set is closed: Enabled,
// Disabled, and ShuttingDown.
type Event interface {
	isEvent()
}

// Enabled reports that the owner plugin came up and offers providers.
type Enabled struct {
	Owner  string
	Offers []core.Offer
}

// Disabled reports that the owner plugin went down.
type Disabled struct {
	Owner string
}

// ShuttingDown reports that the host is stopping.
type ShuttingDown struct{}

func (Enabled) isEvent()      {}
func (Disabled) isEvent()     {}
func (ShuttingDown) isEvent() {}

// Result summarizes what one event did to the registry.
type Result struct {
	Registered []services.RegistrationID
	Removed    []services.Registration
	// Rejected holds the offers that failed validation, with their errors.
	Rejected []Rejection
}

// Rejection is an offer the registry refused.
type Rejection struct {
	Offer core.Offer
	Err   error
}

// Listener applies lifecycle events to a registry.
type Listener struct {
	reg *services.Registry
	log logrus.FieldLogger
}

// NewListener creates a listener over reg.
func NewListener(reg *services.Registry, log logrus.FieldLogger) *Listener {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Listener{reg: reg, log: log.WithField("component", "lifecycle")}
}

// Handle applies ev synchronously. A rejected offer is logged and skipped;
// the remaining offers are still registered.
func (l *Listener) Handle(ev Event) Result {
	switch ev := ev.(type) {
	case Enabled:
		return l.enabled(ev)
	case Disabled:
		removed := l.reg.UnregisterAll(ev.Owner)
		l.log.WithFields(logrus.Fields{
			"owner":   ev.Owner,
			"removed": len(removed),
		}).Info("plugin disabled")
		return Result{Removed: removed}
	case ShuttingDown:
		var res Result
		for _, owner := range l.reg.Owners() {
			res.Removed = append(res.Removed, l.reg.UnregisterAll(owner)...)
		}
		l.log.WithField("removed", len(res.Removed)).Info("host shutting down")
		return res
	default:
		l.log.WithField("event", ev).Warn("ignoring unknown lifecycle event")
		return Result{}
	}
}

func (l *Listener) enabled(ev Enabled) Result {
	var res Result
	for _, offer := range ev.Offers {
		id, err := l.reg.Register(ev.Owner, offer)
		if err != nil {
			l.log.WithFields(logrus.Fields{
				"owner": ev.Owner,
				"offer": offerLabel(offer),
			}).WithError(err).Warn("rejected provider offer")
			res.Rejected = append(res.Rejected, Rejection{Offer: offer, Err: err})
			continue
		}
		res.Registered = append(res.Registered, id)
	}
	l.log.WithFields(logrus.Fields{
		"owner":      ev.Owner,
		"registered": len(res.Registered),
		"rejected":   len(res.Rejected),
	}).Info("plugin enabled")
	return res
}

// Run consumes events until ctx is done or events is closed.
func (l *Listener) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.Handle(ev)
		}
	}
}

// offerLabel renders an offer for logs without trusting the provider's Name.
func offerLabel(o core.Offer) (label string) {
	defer func() {
		if recover() != nil {
			label = o.Kind().String() + ":<unnamed>"
		}
	}()
	return o.String()
}
