// ABOUTME: Tests for CLI commands and server wiring.
// ABOUTME: Runs the bundled plugins against a temp database and checks output and shutdown.

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389/vault/internal/config"
	"github.com/2389/vault/internal/convert"
	"github.com/2389/vault/internal/logging"
	"github.com/2389/vault/internal/store"
	"github.com/2389/vault/internal/telemetry"
	"github.com/2389/vault/plugins/core"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Port:              "0",
		DBPath:            filepath.Join(dir, "vault.db"),
		LogLevel:          "error",
		LogFormat:         logging.FormatText,
		DefaultPriority:   core.PriorityNormal,
		GroupsFile:        filepath.Join(dir, "groups.yml"),
		TelemetrySchedule: "@every 1h",
		APIVersion:        "1.7.3",
	}
}

func startApp(t *testing.T) *app {
	t.Helper()
	a, err := newApp(testConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	ctx := context.Background()
	a.start(ctx)
	t.Cleanup(func() { a.close(ctx) })
	return a
}

func TestNewApp_RejectsBadDBPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = "../escape.db"
	if _, err := newApp(cfg); err == nil {
		t.Fatal("newApp() should reject a path with traversal")
	}
}

func TestPrintInfo(t *testing.T) {
	a := startApp(t)

	var buf bytes.Buffer
	printInfo(&buf, a)
	out := buf.String()

	for _, want := range []string{
		"Host API 1.7.3",
		"ledger",
		"superperms",
		"* Ledger",
		"* GroupManager",
		"  SuperPerms",
		"* ChatMeta",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printInfo output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "(none)") {
		t.Errorf("every capability should have a provider:\n%s", out)
	}
}

func TestRouter_Healthz(t *testing.T) {
	a := startApp(t)
	collector := telemetry.NewCollector(a.vault.Registry(), a.vault.Resolver())
	defer collector.Close()

	rr := httptest.NewRecorder()
	newRouter(a, collector).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	rr = httptest.NewRecorder()
	newRouter(a, collector).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "vault_registrations") {
		t.Errorf("metrics output missing vault_registrations:\n%s", rr.Body.String())
	}
}

func TestPrintConversion(t *testing.T) {
	var buf bytes.Buffer
	printConversion(&buf, convert.Result{
		From:     "Ledger",
		To:       "Other",
		Accounts: 3,
		Moved:    1,
		Skipped:  1,
		Total:    12.5,
		Failures: []convert.Failure{{Account: "bob", Reason: "insufficient funds"}},
	})

	want := "Converted Ledger -> Other: 1 of 3 accounts moved (12.50 total), 1 skipped\n" +
		"  failed bob: insufficient funds\n"
	if buf.String() != want {
		t.Errorf("printConversion() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	for _, key := range []string{"VAULT_PORT", "VAULT_DB", "VAULT_API_VERSION"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	want := filepath.Join(t.TempDir(), "flag.db")
	port, dbPath = "9123", want
	t.Cleanup(func() { port, dbPath = "", "" })

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Port != "9123" {
		t.Errorf("Port = %q, want 9123", cfg.Port)
	}
	if cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
}

func TestServe_RecordsBindingsUntilShutdown(t *testing.T) {
	cfg := testConfig(t)
	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, a) }()

	deadline := time.Now().Add(5 * time.Second)
	for a.vault.Registry().Len() < 4 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("plugins did not register, have %d", a.vault.Registry().Len())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	if n := a.vault.Registry().Len(); n != 0 {
		t.Errorf("registrations after shutdown = %d, want 0", n)
	}

	s, err := store.New(cfg.DBPath, a.log)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	counts, err := s.CountEvents()
	if err != nil {
		t.Fatalf("CountEvents() error = %v", err)
	}
	if counts[store.OpRegistered] != 4 {
		t.Errorf("registered events = %d, want 4", counts[store.OpRegistered])
	}
	if counts[store.OpUnregistered] != 4 {
		t.Errorf("unregistered events = %d, want 4", counts[store.OpUnregistered])
	}
	if counts[store.OpRebound] == 0 {
		t.Error("expected rebound events")
	}
}

func TestSeedPlayers(t *testing.T) {
	a := startApp(t)
	ctx := context.Background()

	sum, err := seedPlayers(ctx, a, 5)
	if err != nil {
		t.Fatalf("seedPlayers() error = %v", err)
	}
	if sum.Players != 5 || sum.Accounts != 5 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.Groups != 5 {
		t.Errorf("every player should join the default group, got %d", sum.Groups)
	}
	if len(sum.Failed) != 0 {
		t.Errorf("unexpected failed deposits: %v", sum.Failed)
	}

	econ, ok := a.vault.Economy()
	if !ok {
		t.Fatal("expected a bound economy")
	}
	if !econ.HasAccount("Notch_Fan") {
		t.Error("expected Notch_Fan to have an account")
	}
	chat, ok := a.vault.Chat()
	if !ok {
		t.Fatal("expected a bound chat provider")
	}
	if got := chat.PlayerPrefix("", "Notch_Fan"); got != "[Admin] " {
		t.Errorf("PlayerPrefix = %q, want [Admin] ", got)
	}

	var buf bytes.Buffer
	printSeed(&buf, sum)
	if !strings.HasPrefix(buf.String(), "Seeded 5 players: 5 accounts") {
		t.Errorf("printSeed() = %q", buf.String())
	}
}

func TestRouter_AdminTokenGuardsPluginChanges(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminToken = "t0ken"
	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	ctx := context.Background()
	a.start(ctx)
	t.Cleanup(func() { a.close(ctx) })

	collector := telemetry.NewCollector(a.vault.Registry(), a.vault.Resolver())
	defer collector.Close()
	router := newRouter(a, collector)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/plugins/ledger/disable", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if !a.host.Enabled("ledger") {
		t.Fatal("ledger should still be enabled")
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/plugins", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("reads should not need the token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/plugins/ledger/disable", nil)
	req.Header.Set("Authorization", "Bearer t0ken")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if a.host.Enabled("ledger") {
		t.Error("ledger should be disabled")
	}
}
