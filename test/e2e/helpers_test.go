// ABOUTME: Test helpers for E2E testing.
// ABOUTME: Starts the admin server over a real vault, plugin host, and audit store.

package e2e_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/2389/vault"
	"github.com/2389/vault/internal/admin"
	"github.com/2389/vault/internal/host"
	"github.com/2389/vault/internal/logging"
	"github.com/2389/vault/internal/services"
	"github.com/2389/vault/internal/store"
	"github.com/2389/vault/plugins/core"
	_ "github.com/2389/vault/plugins/chatmeta"     // Register ChatMeta plugin
	_ "github.com/2389/vault/plugins/groupmanager" // Register GroupManager plugin
	_ "github.com/2389/vault/plugins/ledger"       // Register Ledger plugin
	_ "github.com/2389/vault/plugins/superperms"   // Register SuperPerms plugin
)

// TestServer wraps a test HTTP server with the vault behind it.
type TestServer struct {
	Server *httptest.Server
	Store  *store.Store
	Vault  *vault.Vault
	Host   *host.Host
}

// StartTestServer enables every bundled plugin and serves the admin routes.
// Registry changes are written to the audit store synchronously.
func StartTestServer(t *testing.T) *TestServer {
	t.Helper()
	dir := t.TempDir()

	log := logrus.New()
	log.SetOutput(io.Discard)

	s, err := store.New(filepath.Join(dir, "vault.db"), log)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	v := vault.New(vault.WithLogger(log))
	v.Registry().Subscribe(func(c services.Change) {
		if err := s.RecordEvents(store.EventsFromChange(c)); err != nil {
			t.Errorf("failed to record events: %v", err)
		}
	})

	env := core.Env{
		DB:         s.GetDB(),
		Logger:     log,
		GroupsFile: filepath.Join(dir, "groups.yml"),
		Permission: v.Permission,
	}
	h, err := host.New(v.Listener(), env, "1.7.3", core.All())
	if err != nil {
		t.Fatalf("failed to create host: %v", err)
	}
	if errs := h.EnableAll(context.Background()); len(errs) > 0 {
		t.Fatalf("failed to enable plugins: %v", errs)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(log))
	admin.NewHandlers(admin.Deps{
		Registry: v.Registry(),
		Resolver: v.Resolver(),
		Host:     h,
		Events:   s,
		Logger:   log,
	}).RegisterRoutes(r)

	ts := &TestServer{
		Server: httptest.NewServer(r),
		Store:  s,
		Vault:  v,
		Host:   h,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close shuts down the server, disables every plugin, and closes the store.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Host.Shutdown(context.Background())
	ts.Store.Close()
}

// GET makes a GET request against the admin server.
func (ts *TestServer) GET(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.Server.Client().Get(ts.Server.URL + path)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// POST makes an empty-body POST request against the admin server.
func (ts *TestServer) POST(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.Server.Client().Post(ts.Server.URL+path, "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// AssertStatusCode checks if response has expected status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("expected status %d, got %d. Body: %s", expected, resp.StatusCode, string(body))
	}
}

// DecodeJSON decodes response body as JSON
func DecodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
}

// ReadBody reads and returns the response body
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(body)
}
