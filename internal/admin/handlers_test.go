// ABOUTME: Tests for the admin JSON and HTML handlers.
// ABOUTME: Drives a real registry and host through the chi router with fake plugins.

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierr "github.com/2389/vault/internal/errors"
	"github.com/2389/vault/internal/host"
	"github.com/2389/vault/internal/lifecycle"
	"github.com/2389/vault/internal/services"
	"github.com/2389/vault/internal/store"
	"github.com/2389/vault/plugins/core"
)

type fakeEconomy struct {
	core.Economy
	name string
}

func (f *fakeEconomy) Name() string    { return f.name }
func (f *fakeEconomy) IsEnabled() bool { return true }

// fakePlugin offers one economy and exposes an "accounts" resource.
type fakePlugin struct {
	manifest  core.Manifest
	priority  core.Priority
	enableErr error
	rows      []map[string]any
	lastOpts  core.ListOptions
}

func (f *fakePlugin) Manifest() core.Manifest { return f.manifest }
func (f *fakePlugin) Health() core.HealthStatus {
	return core.HealthStatus{Status: "healthy"}
}

func (f *fakePlugin) Enable(ctx context.Context, env core.Env) ([]core.Offer, error) {
	if f.enableErr != nil {
		return nil, f.enableErr
	}
	return []core.Offer{core.OfferEconomy(&fakeEconomy{name: f.manifest.Name + "Eco"}, f.priority)}, nil
}

func (f *fakePlugin) Disable(ctx context.Context) error { return nil }

func (f *fakePlugin) Schema() core.PluginSchema {
	return core.PluginSchema{Resources: []core.ResourceSchema{{
		Name:        "Accounts",
		Slug:        "accounts",
		ListColumns: []string{"player", "balance"},
		Fields: []core.FieldSchema{
			{Name: "player", Type: "string", Display: "Player"},
			{Name: "balance", Type: "number", Display: "Balance"},
		},
	}}}
}

func (f *fakePlugin) ListResources(ctx context.Context, slug string, opts core.ListOptions) ([]map[string]any, error) {
	f.lastOpts = opts
	if opts.Offset >= len(f.rows) {
		return nil, nil
	}
	end := min(len(f.rows), opts.Offset+opts.Limit)
	return f.rows[opts.Offset:end], nil
}

type fakeEvents struct {
	events  []*store.BindingEvent
	err     error
	lastQry *store.EventQuery
}

func (f *fakeEvents) ListEvents(q *store.EventQuery) ([]*store.BindingEvent, error) {
	f.lastQry = q
	return f.events, f.err
}

func (f *fakeEvents) CountEvents() (map[string]int, error) {
	return map[string]int{store.OpRegistered: len(f.events)}, f.err
}

type fixture struct {
	router http.Handler
	reg    *services.Registry
	host   *host.Host
	ledger *fakePlugin
	events *fakeEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	ledger := &fakePlugin{
		manifest: core.Manifest{Name: "ledger", Version: "1.2.0", Description: "SQLite economy"},
		priority: core.PriorityNormal,
	}
	future := &fakePlugin{
		manifest: core.Manifest{Name: "future", Version: "3.0.0", APIConstraint: ">= 2.0"},
		priority: core.PriorityHigh,
	}
	broken := &fakePlugin{
		manifest:  core.Manifest{Name: "broken", Version: "0.1.0"},
		enableErr: errors.New("config missing"),
	}

	reg := services.NewRegistry(services.WithLogger(log))
	h, err := host.New(lifecycle.NewListener(reg, log), core.Env{Logger: log}, "1.7.3",
		[]core.Plugin{ledger, future, broken})
	require.NoError(t, err)

	events := &fakeEvents{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "vault_registrations 0\n")
	})

	r := chi.NewRouter()
	NewHandlers(Deps{
		Registry: reg,
		Resolver: services.NewResolver(reg),
		Host:     h,
		Events:   events,
		Metrics:  metrics,
		Logger:   log,
	}).RegisterRoutes(r)

	return &fixture{router: r, reg: reg, host: h, ledger: ledger, events: events}
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func assertAPIError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) apierr.ErrorResponse {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	resp := decodeJSON[apierr.ErrorResponse](t, w)
	assert.Equal(t, code, resp.Code)
	return resp
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	f.do("POST", "/admin/plugins/ledger/enable")

	w := f.do("GET", "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON[map[string]any](t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, 1.0, body["registrations"])
	assert.Equal(t, map[string]any{"ledger": "healthy"}, body["plugins"])
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t)

	w := f.do("GET", "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vault_registrations")
}

func TestProviders(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.Register("backup", core.OfferEconomy(&fakeEconomy{name: "Backup"}, core.PriorityLow))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.do("POST", "/admin/plugins/ledger/enable").Code)

	w := f.do("GET", "/admin/providers")
	require.Equal(t, http.StatusOK, w.Code)
	all := decodeJSON[map[string][]providerView](t, w)

	require.Len(t, all["economy"], 2)
	assert.Equal(t, "ledgerEco", all["economy"][0].Provider)
	assert.True(t, all["economy"][0].Bound)
	assert.Equal(t, core.PriorityNormal, all["economy"][0].Priority)
	assert.Equal(t, "Backup", all["economy"][1].Provider)
	assert.False(t, all["economy"][1].Bound)
	assert.Empty(t, all["chat"])

	w = f.do("GET", "/admin/providers/Economy")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSON[[]providerView](t, w), 2)
	assert.Contains(t, w.Body.String(), `"priority":"normal"`)
}

func TestProviders_UnknownKind(t *testing.T) {
	f := newFixture(t)

	resp := assertAPIError(t, f.do("GET", "/admin/providers/bank"), http.StatusBadRequest, apierr.ErrUnknownKind)
	assert.Equal(t, "kind", resp.Field)
}

func TestBindings(t *testing.T) {
	f := newFixture(t)

	before := decodeJSON[[]bindingView](t, f.do("GET", "/admin/bindings"))
	require.Len(t, before, 3)
	for _, b := range before {
		assert.False(t, b.Bound, b.Kind)
		assert.Nil(t, b.Provider)
	}

	f.do("POST", "/admin/plugins/ledger/enable")
	after := decodeJSON[[]bindingView](t, f.do("GET", "/admin/bindings"))
	require.Len(t, after, 3)
	assert.Equal(t, "economy", after[0].Kind)
	assert.True(t, after[0].Bound)
	require.NotNil(t, after[0].Provider)
	assert.Equal(t, "ledger", after[0].Provider.Owner)
	assert.Equal(t, uint64(2), after[0].Misses)
	assert.False(t, after[1].Bound)
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	f.events.events = []*store.BindingEvent{{ID: "a", Seq: 1, Op: store.OpRegistered, Kind: "economy"}}

	w := f.do("GET", "/admin/events?limit=10&offset=5&kind=Economy&op=rebound&owner=led")
	require.Equal(t, http.StatusOK, w.Code)

	q := f.events.lastQry
	require.NotNil(t, q)
	assert.Equal(t, store.EventQuery{Limit: 10, Offset: 5, Kind: "economy", Op: store.OpRebound, OwnerPrefix: "led"}, *q)

	body := decodeJSON[struct {
		Events []store.BindingEvent `json:"events"`
		Counts map[string]int       `json:"counts"`
	}](t, w)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "a", body.Events[0].ID)
	assert.Equal(t, 1, body.Counts[store.OpRegistered])
}

func TestEvents_EmptyListIsArray(t *testing.T) {
	f := newFixture(t)

	w := f.do("GET", "/admin/events")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"events":[]`)
}

func TestEvents_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  string
		field string
	}{
		{"negative limit", "limit=-1", apierr.ErrInvalidRequest, "limit"},
		{"non-numeric offset", "offset=abc", apierr.ErrInvalidRequest, "offset"},
		{"unknown kind", "kind=bank", apierr.ErrUnknownKind, "kind"},
		{"unknown op", "op=exploded", apierr.ErrInvalidRequest, "op"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp := assertAPIError(t, f.do("GET", "/admin/events?"+tt.query), http.StatusBadRequest, tt.code)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
}

func TestEvents_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("database is locked")

	resp := assertAPIError(t, f.do("GET", "/admin/events"), http.StatusInternalServerError, apierr.ErrDatabaseError)
	assert.Equal(t, "database is locked", resp.Details)
}

func TestEvents_NotConfigured(t *testing.T) {
	reg := services.NewRegistry()
	r := chi.NewRouter()
	NewHandlers(Deps{Registry: reg, Resolver: services.NewResolver(reg)}).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/admin/events", nil))
	assertAPIError(t, w, http.StatusServiceUnavailable, apierr.ErrServiceUnavailable)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPluginsList(t *testing.T) {
	f := newFixture(t)
	f.do("POST", "/admin/plugins/ledger/enable")

	plugins := decodeJSON[[]pluginView](t, f.do("GET", "/admin/plugins"))
	require.Len(t, plugins, 3)

	byName := map[string]pluginView{}
	for _, p := range plugins {
		byName[p.Name] = p
	}
	assert.True(t, byName["ledger"].Enabled)
	assert.True(t, byName["ledger"].Compatible)
	assert.Equal(t, 1, byName["ledger"].Offers)
	assert.Equal(t, []string{"accounts"}, byName["ledger"].Resources)
	assert.False(t, byName["future"].Compatible)
	assert.Contains(t, byName["future"].Incompatible, ">= 2.0")
	assert.Equal(t, "healthy", byName["broken"].Health.Status)
}

func TestPluginEnableDisable(t *testing.T) {
	f := newFixture(t)

	w := f.do("POST", "/admin/plugins/ledger/enable")
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeJSON[resultView](t, w)
	assert.Equal(t, "ledger", res.Plugin)
	assert.Len(t, res.Registered, 1)
	assert.Empty(t, res.Rejected)

	w = f.do("POST", "/admin/plugins/ledger/disable")
	require.Equal(t, http.StatusOK, w.Code)
	res = decodeJSON[resultView](t, w)
	require.Len(t, res.Removed, 1)
	assert.Equal(t, "ledgerEco", res.Removed[0].Provider)
	assert.Zero(t, f.reg.Len())
}

func TestPluginLifecycleErrors(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do("POST", "/admin/plugins/ledger/enable").Code)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown plugin", "/admin/plugins/nope/enable", http.StatusNotFound, apierr.ErrPluginNotFound},
		{"already enabled", "/admin/plugins/ledger/enable", http.StatusConflict, apierr.ErrAlreadyEnabled},
		{"not enabled", "/admin/plugins/future/disable", http.StatusConflict, apierr.ErrNotEnabled},
		{"incompatible", "/admin/plugins/future/enable", http.StatusConflict, apierr.ErrIncompatibleAPI},
		{"plugin fails", "/admin/plugins/broken/enable", http.StatusInternalServerError, apierr.ErrPluginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertAPIError(t, f.do("POST", tt.path), tt.status, tt.code)
		})
	}
}

func TestPluginResourceList(t *testing.T) {
	f := newFixture(t)
	f.ledger.rows = []map[string]any{
		{"player": "Notch", "balance": 12.5},
		{"player": "<script>", "balance": 0.0},
	}

	assertAPIError(t, f.do("GET", "/admin/plugins/ledger/resources/accounts"), http.StatusConflict, apierr.ErrNotEnabled)

	f.do("POST", "/admin/plugins/ledger/enable")
	w := f.do("GET", "/admin/plugins/ledger/resources/accounts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "<title>ledger: Accounts - vault</title>")
	assert.Contains(t, body, "<th>Player</th>")
	assert.Contains(t, body, `<td class="number">12.50</td>`)
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<td class=\"string\"><script>")
	assert.NotContains(t, body, "Next")
	assert.Equal(t, core.ListOptions{Limit: resourcePageSize}, f.ledger.lastOpts)
}

func TestPluginResourceList_Pagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < resourcePageSize+10; i++ {
		f.ledger.rows = append(f.ledger.rows, map[string]any{"player": fmt.Sprintf("p%03d", i), "balance": 1.0})
	}
	f.do("POST", "/admin/plugins/ledger/enable")

	body := f.do("GET", "/admin/plugins/ledger/resources/accounts").Body.String()
	assert.Contains(t, body, `href="/admin/plugins/ledger/resources/accounts?offset=50"`)
	assert.NotContains(t, body, "Previous")

	body = f.do("GET", "/admin/plugins/ledger/resources/accounts?offset=50").Body.String()
	assert.Contains(t, body, `href="/admin/plugins/ledger/resources/accounts?offset=0"`)
	assert.Equal(t, 10, strings.Count(body, "<tr><td"))
}

func TestPluginResourceList_NotFound(t *testing.T) {
	f := newFixture(t)

	assertAPIError(t, f.do("GET", "/admin/plugins/nope/resources/accounts"), http.StatusNotFound, apierr.ErrPluginNotFound)
	assertAPIError(t, f.do("GET", "/admin/plugins/ledger/resources/banks"), http.StatusNotFound, apierr.ErrNotFound)
}
