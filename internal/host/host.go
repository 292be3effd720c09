// ABOUTME: Host harness that enables and disables candidate plugins.
// ABOUTME: Checks API compatibility and forwards lifecycle events to the listener.

package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"

	"github.com/2389/vault/internal/lifecycle"
	"github.com/2389/vault/plugins/core"
)

var (
	ErrPluginNotFound  = errors.New("plugin not found")
	ErrAlreadyEnabled  = errors.New("plugin already enabled")
	ErrNotEnabled      = errors.New("plugin not enabled")
	ErrIncompatibleAPI = errors.New("plugin incompatible with host API")
)

// Status is a plugin's state as seen by the host.
type Status struct {
	Manifest core.Manifest
	Enabled  bool
	Health   core.HealthStatus
	// Offers is how many providers the plugin offered when last enabled.
	Offers int
	// Rejected is how many of those offers the registry refused.
	Rejected int
}

type state struct {
	enabled  bool
	offers   int
	rejected int
}

// Host owns the set of candidate plugins and their enabled state.
type Host struct {
	mu       sync.Mutex
	plugins  map[string]core.Plugin
	states   map[string]*state
	listener *lifecycle.Listener
	env      core.Env
	api      *semver.Version
	log      logrus.FieldLogger
}

// New creates a host over plugins. apiVersion is the host API version that
// plugin manifests are checked against.
func New(listener *lifecycle.Listener, env core.Env, apiVersion string, plugins []core.Plugin) (*Host, error) {
	api, err := semver.NewVersion(apiVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid host API version %q: %w", apiVersion, err)
	}

	log := env.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	h := &Host{
		plugins:  make(map[string]core.Plugin, len(plugins)),
		states:   make(map[string]*state, len(plugins)),
		listener: listener,
		env:      env,
		api:      api,
		log:      log.WithField("component", "host"),
	}
	for _, p := range plugins {
		name := p.Manifest().Name
		if _, exists := h.plugins[name]; exists {
			return nil, fmt.Errorf("duplicate plugin %q", name)
		}
		h.plugins[name] = p
		h.states[name] = &state{}
	}
	return h, nil
}

// APIVersion returns the host API version.
func (h *Host) APIVersion() string {
	return h.api.String()
}

// Compatible reports whether m's API constraint admits the host version.
func (h *Host) Compatible(m core.Manifest) error {
	if m.APIConstraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.APIConstraint)
	if err != nil {
		return fmt.Errorf("%w: %s has unparseable constraint %q: %v", ErrIncompatibleAPI, m.Name, m.APIConstraint, err)
	}
	if ok, errs := c.Validate(h.api); !ok {
		return fmt.Errorf("%w: %s requires %s, host is %s: %v", ErrIncompatibleAPI, m.Name, m.APIConstraint, h.api, errors.Join(errs...))
	}
	return nil
}

// Enable starts the named plugin and registers what it offers.
func (h *Host) Enable(ctx context.Context, name string) (lifecycle.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, st, err := h.lookup(name)
	if err != nil {
		return lifecycle.Result{}, err
	}
	if st.enabled {
		return lifecycle.Result{}, fmt.Errorf("%w: %s", ErrAlreadyEnabled, name)
	}
	if err := h.Compatible(p.Manifest()); err != nil {
		h.log.WithField("plugin", name).WithError(err).Warn("refusing to enable plugin")
		return lifecycle.Result{}, err
	}

	env := h.env
	env.Logger = h.log.WithField("plugin", name)
	offers, err := p.Enable(ctx, env)
	if err != nil {
		return lifecycle.Result{}, fmt.Errorf("enable %s: %w", name, err)
	}

	res := h.listener.Handle(lifecycle.Enabled{Owner: name, Offers: offers})
	st.enabled = true
	st.offers = len(offers)
	st.rejected = len(res.Rejected)
	return res, nil
}

// Disable stops the named plugin after removing its providers.
func (h *Host) Disable(ctx context.Context, name string) (lifecycle.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, st, err := h.lookup(name)
	if err != nil {
		return lifecycle.Result{}, err
	}
	if !st.enabled {
		return lifecycle.Result{}, fmt.Errorf("%w: %s", ErrNotEnabled, name)
	}
	return h.disable(ctx, name, p, st)
}

// disable unregisters first so no caller resolves a provider whose plugin is
// already stopping. The caller must hold h.mu.
func (h *Host) disable(ctx context.Context, name string, p core.Plugin, st *state) (lifecycle.Result, error) {
	res := h.listener.Handle(lifecycle.Disabled{Owner: name})
	st.enabled = false
	if err := p.Disable(ctx); err != nil {
		return res, fmt.Errorf("disable %s: %w", name, err)
	}
	return res, nil
}

// EnableAll enables every compatible plugin that is not yet enabled, in name
// order. Incompatible or failing plugins are logged and skipped.
func (h *Host) EnableAll(ctx context.Context) []error {
	var errs []error
	for _, name := range h.Names() {
		if _, err := h.Enable(ctx, name); err != nil {
			if errors.Is(err, ErrAlreadyEnabled) {
				continue
			}
			h.log.WithField("plugin", name).WithError(err).Warn("plugin not enabled")
			errs = append(errs, err)
		}
	}
	return errs
}

// Shutdown disables every enabled plugin in reverse name order and then
// signals the listener that the host is stopping.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := h.sortedNames()
	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		st := h.states[name]
		if !st.enabled {
			continue
		}
		if _, err := h.disable(ctx, name, h.plugins[name], st); err != nil {
			errs = append(errs, err)
		}
	}
	h.listener.Handle(lifecycle.ShuttingDown{})
	return errors.Join(errs...)
}

// Plugin returns the named plugin.
func (h *Host) Plugin(name string) (core.Plugin, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.plugins[name]
	return p, ok
}

// Enabled reports whether the named plugin is currently enabled.
func (h *Host) Enabled(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.states[name]
	return ok && st.enabled
}

// Names returns the candidate plugin names, sorted.
func (h *Host) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sortedNames()
}

// Statuses reports every candidate plugin, sorted by name.
func (h *Host) Statuses() []Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Status, 0, len(h.plugins))
	for _, name := range h.sortedNames() {
		p := h.plugins[name]
		st := h.states[name]
		out = append(out, Status{
			Manifest: p.Manifest(),
			Enabled:  st.enabled,
			Health:   p.Health(),
			Offers:   st.offers,
			Rejected: st.rejected,
		})
	}
	return out
}

func (h *Host) lookup(name string) (core.Plugin, *state, error) {
	p, ok := h.plugins[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, h.states[name], nil
}

func (h *Host) sortedNames() []string {
	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
