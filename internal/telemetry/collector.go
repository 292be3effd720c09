// ABOUTME: Prometheus collector over registry state on a private registry.
// ABOUTME: Tracks registrations, bindings, and resolver cache misses.

// Package telemetry exports registry state as Prometheus metrics on a private
// registry and periodically logs a usage snapshot.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/vault/internal/services"
	"github.com/2389/vault/plugins/core"
)

const namespace = "vault"

// Collector keeps registry metrics current by subscribing to registry changes.
type Collector struct {
	registry *prometheus.Registry
	reg      *services.Registry
	resolver *services.Resolver

	registrations *prometheus.GaugeVec
	binding       *prometheus.GaugeVec
	registered    *prometheus.CounterVec
	unregistered  *prometheus.CounterVec
	rebinds       *prometheus.CounterVec

	mu          sync.Mutex
	unsubscribe func()
}

// NewCollector builds the metrics and subscribes to reg. Call Close to detach.
func NewCollector(reg *services.Registry, resolver *services.Resolver) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		reg:      reg,
		resolver: resolver,
	}

	c.registrations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registrations",
			Help:      "Current number of registered providers per capability kind and owner",
		},
		[]string{"kind", "owner"},
	)

	c.binding = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "binding_info",
			Help:      "The provider each capability kind currently resolves to (always 1)",
		},
		[]string{"kind", "provider", "owner", "priority"},
	)

	c.registered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of provider registrations",
		},
		[]string{"kind"},
	)

	c.unregistered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unregistrations_total",
			Help:      "Total number of provider unregistrations",
		},
		[]string{"kind"},
	)

	c.rebinds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebinds_total",
			Help:      "Total number of times a capability kind changed provider",
		},
		[]string{"kind"},
	)

	c.registry.MustRegister(
		c.registrations,
		c.binding,
		c.registered,
		c.unregistered,
		c.rebinds,
	)

	for _, kind := range core.Kinds() {
		kind := kind
		c.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "resolver",
				Name:        "cache_misses_total",
				Help:        "Total number of resolutions that recomputed the binding",
				ConstLabels: prometheus.Labels{"kind": kind.String()},
			},
			func() float64 { return float64(resolver.Misses(kind)) },
		))
	}

	c.refresh()
	c.unsubscribe = reg.Subscribe(c.observe)
	return c
}

// Registry returns the private Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Close stops observing the registry.
func (c *Collector) Close() {
	c.unsubscribe()
}

func (c *Collector) observe(change services.Change) {
	counter := c.registered
	if change.Op == services.OpUnregistered {
		counter = c.unregistered
	}
	for _, rec := range change.Records {
		counter.WithLabelValues(rec.Kind.String()).Inc()
	}
	for _, rb := range change.Rebinds {
		c.rebinds.WithLabelValues(rb.Kind.String()).Inc()
	}
	c.refresh()
}

// refresh rebuilds the gauges from one registry snapshot.
func (c *Collector) refresh() {
	all := c.reg.All()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.registrations.Reset()
	c.binding.Reset()
	for kind, records := range all {
		for _, rec := range records {
			c.registrations.WithLabelValues(kind.String(), rec.Owner).Inc()
		}
		if len(records) > 0 {
			top := records[0]
			c.binding.WithLabelValues(kind.String(), top.Provider, top.Owner, top.Priority.String()).Set(1)
		}
	}
}

// KindUsage summarizes one capability kind.
type KindUsage struct {
	Kind      string `json:"kind"`
	Providers int    `json:"providers"`
	Bound     string `json:"bound,omitempty"`
	Misses    uint64 `json:"cache_misses"`
}

// Snapshot is a point-in-time usage summary.
type Snapshot struct {
	Owners        []string    `json:"owners"`
	Registrations int         `json:"registrations"`
	Kinds         []KindUsage `json:"kinds"`
}

// Snapshot summarizes the registry as it is now.
func (c *Collector) Snapshot() Snapshot {
	all := c.reg.All()
	snap := Snapshot{Owners: c.reg.Owners()}

	for _, kind := range core.Kinds() {
		records := all[kind]
		usage := KindUsage{
			Kind:      kind.String(),
			Providers: len(records),
			Misses:    c.resolver.Misses(kind),
		}
		if len(records) > 0 {
			usage.Bound = records[0].Provider
		}
		snap.Registrations += len(records)
		snap.Kinds = append(snap.Kinds, usage)
	}
	return snap
}
