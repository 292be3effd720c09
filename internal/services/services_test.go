// ABOUTME: Shared fakes and constructors for services tests.
// ABOUTME: Handles are pointers so identity comparisons work.

package services

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/2389/vault/plugins/core"
)

// fakeEconomy satisfies core.Economy for registry tests. Only Name and
// IsEnabled are ever called; the embedded nil interface covers the rest.
type fakeEconomy struct {
	core.Economy
	name string
}

func (f *fakeEconomy) Name() string    { return f.name }
func (f *fakeEconomy) IsEnabled() bool { return true }

type fakePermission struct {
	core.Permission
	name string
}

func (f *fakePermission) Name() string    { return f.name }
func (f *fakePermission) IsEnabled() bool { return true }

type fakeChat struct {
	core.Chat
	name string
}

func (f *fakeChat) Name() string    { return f.name }
func (f *fakeChat) IsEnabled() bool { return true }

func eco(name string) *fakeEconomy     { return &fakeEconomy{name: name} }
func perm(name string) *fakePermission { return &fakePermission{name: name} }
func chat(name string) *fakeChat       { return &fakeChat{name: name} }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRegistry() (*Registry, *Resolver) {
	reg := NewRegistry(WithLogger(quietLogger()))
	return reg, NewResolver(reg)
}
