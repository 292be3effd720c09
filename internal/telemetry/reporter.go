// ABOUTME: Cron-driven reporter that logs a usage snapshot.
// ABOUTME: Runs on the configured schedule until stopped.

package telemetry

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reporter logs a usage snapshot on a cron schedule.
type Reporter struct {
	collector *Collector
	cron      *cron.Cron
	log       logrus.FieldLogger
}

// NewReporter schedules snapshots. schedule is a standard five-field cron
// expression or a descriptor such as "@every 30m".
func NewReporter(c *Collector, schedule string, log logrus.FieldLogger) (*Reporter, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Reporter{
		collector: c,
		cron:      cron.New(),
		log:       log.WithField("component", "telemetry"),
	}
	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return nil, fmt.Errorf("invalid telemetry schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Run starts the schedule and blocks until ctx is done. A final snapshot is
// logged on the way out.
func (r *Reporter) Run(ctx context.Context) error {
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.Report()
	return nil
}

// Report logs the current snapshot.
func (r *Reporter) Report() {
	snap := r.collector.Snapshot()
	fields := logrus.Fields{
		"owners":        len(snap.Owners),
		"registrations": snap.Registrations,
	}
	for _, k := range snap.Kinds {
		fields[k.Kind+"_providers"] = k.Providers
		fields[k.Kind+"_bound"] = k.Bound
		fields[k.Kind+"_misses"] = k.Misses
	}
	r.log.WithFields(fields).Info("registry snapshot")
}
