// ABOUTME: JSON handlers for the admin surface: providers, bindings, events, health.
// ABOUTME: Read-only views over the registry, resolver, and binding audit log.

package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	apierr "github.com/2389/vault/internal/errors"
	"github.com/2389/vault/internal/host"
	"github.com/2389/vault/internal/services"
	"github.com/2389/vault/internal/store"
	"github.com/2389/vault/plugins/core"
)

// EventSource is the part of the audit store the admin API reads.
type EventSource interface {
	ListEvents(q *store.EventQuery) ([]*store.BindingEvent, error)
	CountEvents() (map[string]int, error)
}

// Deps wires the admin handlers. Events and Metrics may be nil.
type Deps struct {
	Registry *services.Registry
	Resolver *services.Resolver
	Host     *host.Host
	Events   EventSource
	Metrics  http.Handler
	Logger   logrus.FieldLogger
}

type Handlers struct {
	reg      *services.Registry
	resolver *services.Resolver
	host     *host.Host
	events   EventSource
	metrics  http.Handler
	log      logrus.FieldLogger
}

func NewHandlers(d Deps) *Handlers {
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handlers{
		reg:      d.Registry,
		resolver: d.Resolver,
		host:     d.Host,
		events:   d.Events,
		metrics:  d.Metrics,
		log:      log.WithField("component", "admin"),
	}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Get("/providers", h.providersList)
		r.Get("/providers/{kind}", h.providersByKind)
		r.Get("/bindings", h.bindingsList)
		r.Get("/events", h.eventsList)
		r.Get("/plugins", h.pluginsList)
		r.Post("/plugins/{name}/enable", h.pluginEnable)
		r.Post("/plugins/{name}/disable", h.pluginDisable)
		r.Get("/plugins/{name}/resources/{resource}", h.pluginResourceList)
	})
}

// providerView is a registration as the admin API shows it.
type providerView struct {
	ID       services.RegistrationID `json:"id"`
	Kind     string                  `json:"kind"`
	Provider string                  `json:"provider"`
	Owner    string                  `json:"owner"`
	Priority core.Priority           `json:"priority"`
	Seq      uint64                  `json:"seq"`
	Bound    bool                    `json:"bound"`
}

func newProviderView(rec services.Registration, bound bool) providerView {
	return providerView{
		ID:       rec.ID,
		Kind:     rec.Kind.String(),
		Provider: rec.Provider,
		Owner:    rec.Owner,
		Priority: rec.Priority,
		Seq:      rec.Seq,
		Bound:    bound,
	}
}

// providerViews converts a best-first list; the head is the bound provider.
func providerViews(records []services.Registration) []providerView {
	out := make([]providerView, 0, len(records))
	for i, rec := range records {
		out = append(out, newProviderView(rec, i == 0))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	plugins := map[string]string{}
	if h.host != nil {
		for _, st := range h.host.Statuses() {
			if st.Enabled {
				plugins[st.Manifest.Name] = st.Health.Status
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"registrations": h.reg.Len(),
		"plugins":       plugins,
	})
}

func (h *Handlers) providersList(w http.ResponseWriter, r *http.Request) {
	all := h.reg.All()
	out := make(map[string][]providerView, len(all))
	for kind, records := range all {
		out[kind.String()] = providerViews(records)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) providersByKind(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		apierr.WriteErrorWithField(w, http.StatusBadRequest, apierr.ErrUnknownKind, err.Error(), "kind")
		return
	}
	writeJSON(w, http.StatusOK, providerViews(h.reg.Providers(kind)))
}

type bindingView struct {
	Kind     string        `json:"kind"`
	Bound    bool          `json:"bound"`
	Provider *providerView `json:"provider,omitempty"`
	Misses   uint64        `json:"cache_misses"`
}

func (h *Handlers) bindingsList(w http.ResponseWriter, r *http.Request) {
	out := make([]bindingView, 0, len(core.Kinds()))
	for _, kind := range core.Kinds() {
		bv := bindingView{Kind: kind.String()}
		if rec, ok := h.resolver.Resolve(kind); ok {
			pv := newProviderView(rec, true)
			bv.Bound = true
			bv.Provider = &pv
		}
		bv.Misses = h.resolver.Misses(kind)
		out = append(out, bv)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) eventsList(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		apierr.WriteError(w, http.StatusServiceUnavailable, apierr.ErrServiceUnavailable, "binding audit log is not configured")
		return
	}

	q := &store.EventQuery{
		OwnerPrefix: r.URL.Query().Get("owner"),
	}

	var ok bool
	if q.Limit, ok = intParam(w, r, "limit"); !ok {
		return
	}
	if q.Offset, ok = intParam(w, r, "offset"); !ok {
		return
	}
	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := core.ParseKind(k)
		if err != nil {
			apierr.WriteErrorWithField(w, http.StatusBadRequest, apierr.ErrUnknownKind, err.Error(), "kind")
			return
		}
		q.Kind = kind.String()
	}
	if op := r.URL.Query().Get("op"); op != "" {
		switch op {
		case store.OpRegistered, store.OpUnregistered, store.OpRebound:
			q.Op = op
		default:
			apierr.WriteErrorWithField(w, http.StatusBadRequest, apierr.ErrInvalidRequest, "unknown event op "+strconv.Quote(op), "op")
			return
		}
	}

	events, err := h.events.ListEvents(q)
	if err != nil {
		h.log.WithError(err).Error("list events failed")
		apierr.WriteErrorWithDetails(w, http.StatusInternalServerError, apierr.ErrDatabaseError, "failed to list events", err.Error())
		return
	}
	counts, err := h.events.CountEvents()
	if err != nil {
		h.log.WithError(err).Error("count events failed")
		apierr.WriteErrorWithDetails(w, http.StatusInternalServerError, apierr.ErrDatabaseError, "failed to count events", err.Error())
		return
	}
	if events == nil {
		events = []*store.BindingEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"counts": counts,
	})
}

// intParam parses a non-negative integer query parameter. Absent means 0.
// On failure it writes the error response and returns false.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		apierr.WriteErrorWithField(w, http.StatusBadRequest, apierr.ErrInvalidRequest, name+" must be a non-negative integer", name)
		return 0, false
	}
	return n, true
}
