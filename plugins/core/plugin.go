// ABOUTME: Candidate plugin contract for the vault host.
// ABOUTME: A plugin offers zero or more capability providers when enabled.

package core

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"
)

// Plugin is a candidate the host can enable and disable. Enabling returns the
// capability offers the plugin wants registered under its name.
type Plugin interface {
	// Metadata
	Manifest() Manifest
	Health() HealthStatus

	// Lifecycle
	Enable(ctx context.Context, env Env) ([]Offer, error)
	Disable(ctx context.Context) error

	// Admin UI
	Schema() PluginSchema
}

// Manifest describes a plugin the way its descriptor file would.
type Manifest struct {
	Name        string
	Version     string
	Description string
	// APIConstraint is a semver constraint on the host API, e.g. ">= 1.7".
	// Empty means any version.
	APIConstraint string
}

// HealthStatus represents plugin health
type HealthStatus struct {
	Status  string `json:"status"`            // "healthy", "degraded", "unavailable"
	Message string `json:"message,omitempty"`
}

// Env is what the host hands a plugin on enable.
type Env struct {
	DB     *sql.DB
	Logger logrus.FieldLogger
	// GroupsFile is the path of the YAML groups file for file-backed permission plugins.
	GroupsFile string
	// Permission resolves the currently bound permission provider at call time.
	Permission func() (Permission, bool)
}
