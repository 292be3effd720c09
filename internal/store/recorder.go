// ABOUTME: Asynchronous writer that feeds registry changes into the audit log.
// ABOUTME: Observe never blocks the registry; a full buffer drops the change and counts it.

package store

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/2389/vault/internal/services"
)

const defaultRecorderBuffer = 256

// Recorder buffers changes and writes them from a single goroutine, keeping
// commit order.
type Recorder struct {
	store   *Store
	changes chan services.Change
	dropped atomic.Uint64
	log     logrus.FieldLogger
}

func NewRecorder(s *Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultRecorderBuffer
	}
	return &Recorder{
		store:   s,
		changes: make(chan services.Change, buffer),
		log:     s.log.WithField("component", "recorder"),
	}
}

// Observe queues change. It is meant to be passed to Registry.Subscribe.
func (r *Recorder) Observe(change services.Change) {
	select {
	case r.changes <- change:
	default:
		r.dropped.Add(1)
		r.log.WithField("owner", change.Owner).Warn("audit buffer full, dropping change")
	}
}

// Dropped reports how many changes were discarded because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Run writes queued changes until ctx is done, then drains what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case change := <-r.changes:
			r.write(change)
		case <-ctx.Done():
			for {
				select {
				case change := <-r.changes:
					r.write(change)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) write(change services.Change) {
	if err := r.store.RecordEvents(EventsFromChange(change)); err != nil {
		r.log.WithError(err).Error("failed to record binding events")
	}
}
