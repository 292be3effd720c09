// ABOUTME: Wires config, logging, the audit store, the vault, and the plugin host.
// ABOUTME: Shared by every CLI command so they all see the same provider set.

package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/2389/vault"
	"github.com/2389/vault/internal/config"
	"github.com/2389/vault/internal/host"
	"github.com/2389/vault/internal/logging"
	"github.com/2389/vault/internal/store"
	"github.com/2389/vault/plugins/core"
)

// app is one running vault process.
type app struct {
	cfg   config.Config
	log   *logrus.Logger
	store *store.Store
	vault *vault.Vault
	host  *host.Host
}

func newApp(cfg config.Config) (*app, error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	dbPath, err := config.CleanDBPath(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	s, err := store.New(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	v := vault.New(
		vault.WithLogger(log),
		vault.WithDefaultPriority(cfg.DefaultPriority),
	)

	env := core.Env{
		DB:         s.GetDB(),
		Logger:     log,
		GroupsFile: cfg.GroupsFile,
		Permission: v.Permission,
	}
	h, err := host.New(v.Listener(), env, cfg.APIVersion, core.All())
	if err != nil {
		s.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, store: s, vault: v, host: h}, nil
}

// start enables every compatible plugin. Failures are logged by the host and
// do not stop the others.
func (a *app) start(ctx context.Context) {
	errs := a.host.EnableAll(ctx)
	a.log.WithFields(logrus.Fields{
		"plugins":       len(a.host.Names()),
		"failed":        len(errs),
		"registrations": a.vault.Registry().Len(),
	}).Info("plugins enabled")
}

// close disables every plugin and closes the store.
func (a *app) close(ctx context.Context) error {
	err := a.host.Shutdown(ctx)
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
