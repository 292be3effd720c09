// ABOUTME: Facade over the registry and resolver for dependent code.
// ABOUTME: Accessors return the bound provider per kind, or false when none is bound.

// Package vault is the stable entry point dependent code calls to reach the
// active economy, permission, and chat providers.
//
// A Vault owns one provider registry. Construct it once at process start and
// pass it to the components that need it; there is no package-level instance.
//
//	v := vault.New()
//	v.Register("MyEconomy", core.OfferEconomy(eco, core.PriorityNormal))
//	if economy, ok := v.Economy(); ok {
//		economy.Deposit("Notch", 10)
//	}
package vault

import (
	"github.com/sirupsen/logrus"

	"github.com/2389/vault/internal/lifecycle"
	"github.com/2389/vault/internal/services"
	"github.com/2389/vault/plugins/core"
)

// Vault resolves capability providers. All methods are safe for concurrent use.
type Vault struct {
	reg      *services.Registry
	resolver *services.Resolver
	listener *lifecycle.Listener
}

// Option configures a Vault.
type Option func(*options)

type options struct {
	log             logrus.FieldLogger
	defaultPriority core.Priority
}

// WithLogger sets the logger used by the registry and lifecycle listener.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithDefaultPriority sets the tier for offers that declare none.
func WithDefaultPriority(p core.Priority) Option {
	return func(o *options) { o.defaultPriority = p }
}

// New creates a Vault with an empty registry.
func New(opts ...Option) *Vault {
	o := options{
		log:             logrus.StandardLogger(),
		defaultPriority: core.PriorityNormal,
	}
	for _, opt := range opts {
		opt(&o)
	}

	reg := services.NewRegistry(
		services.WithLogger(o.log),
		services.WithDefaultPriority(o.defaultPriority),
	)
	return &Vault{
		reg:      reg,
		resolver: services.NewResolver(reg),
		listener: lifecycle.NewListener(reg, o.log),
	}
}

// Economy returns the bound economy provider, if any.
func (v *Vault) Economy() (core.Economy, bool) {
	rec, ok := v.resolver.Resolve(core.KindEconomy)
	if !ok {
		return nil, false
	}
	h, ok := rec.Handle.(core.Economy)
	return h, ok
}

// Permission returns the bound permission provider, if any.
func (v *Vault) Permission() (core.Permission, bool) {
	rec, ok := v.resolver.Resolve(core.KindPermission)
	if !ok {
		return nil, false
	}
	h, ok := rec.Handle.(core.Permission)
	return h, ok
}

// Chat returns the bound chat provider, if any.
func (v *Vault) Chat() (core.Chat, bool) {
	rec, ok := v.resolver.Resolve(core.KindChat)
	if !ok {
		return nil, false
	}
	h, ok := rec.Handle.(core.Chat)
	return h, ok
}

// Binding returns the registration currently bound for kind.
func (v *Vault) Binding(kind core.Kind) (services.Registration, bool) {
	return v.resolver.Resolve(kind)
}

// Register offers a provider on behalf of owner.
func (v *Vault) Register(owner string, offer core.Offer) (services.RegistrationID, error) {
	return v.reg.Register(owner, offer)
}

// Unregister removes one registration. Unknown ids are ignored.
func (v *Vault) Unregister(id services.RegistrationID) bool {
	return v.reg.Unregister(id)
}

// UnregisterAll removes everything owner registered.
func (v *Vault) UnregisterAll(owner string) []services.Registration {
	return v.reg.UnregisterAll(owner)
}

// Providers lists the registrations for kind, best first.
func (v *Vault) Providers(kind core.Kind) []services.Registration {
	return v.reg.Providers(kind)
}

// Listener returns the lifecycle listener the host feeds events into.
func (v *Vault) Listener() *lifecycle.Listener {
	return v.listener
}

// Registry exposes the underlying registry for diagnostics and subscribers.
func (v *Vault) Registry() *services.Registry {
	return v.reg
}

// Resolver exposes the resolver for diagnostics.
func (v *Vault) Resolver() *services.Resolver {
	return v.resolver
}
