// ABOUTME: Tests for SQLite store initialization, migrations, and the binding audit log.
// ABOUTME: Drives a real registry so recorded rows match what subscribers see.

package store

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/vault/internal/services"
	"github.com/2389/vault/plugins/core"
)

type testEconomy struct {
	core.Economy
	name string
}

func (e *testEconomy) Name() string    { return e.name }
func (e *testEconomy) IsEnabled() bool { return true }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "vault.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesSchema(t *testing.T) {
	s := newTestStore(t)

	var name string
	err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='binding_events'").Scan(&name)
	require.NoError(t, err)

	version, err := s.getCurrentMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
	assert.NotNil(t, s.GetDB())
}

func TestNewStore_ReopenSkipsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	s, err := New(path, quietLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path, quietLogger())
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestEventsFromChange(t *testing.T) {
	reg := services.NewRegistry(services.WithLogger(quietLogger()))
	var changes []services.Change
	reg.Subscribe(func(c services.Change) { changes = append(changes, c) })

	_, err := reg.Register("ledger", core.OfferEconomy(&testEconomy{name: "Ledger"}, core.PriorityNormal))
	require.NoError(t, err)
	reg.UnregisterAll("ledger")
	require.Len(t, changes, 2)

	events := EventsFromChange(changes[0])
	require.Len(t, events, 2)
	assert.Equal(t, OpRegistered, events[0].Op)
	assert.Equal(t, "economy", events[0].Kind)
	assert.Equal(t, "Ledger", events[0].Provider)
	assert.Equal(t, "normal", events[0].Priority)
	assert.Equal(t, OpRebound, events[1].Op)
	assert.Empty(t, events[1].FromProvider)
	assert.Equal(t, "Ledger", events[1].ToProvider)
	assert.NotEqual(t, events[0].ID, events[1].ID)

	events = EventsFromChange(changes[1])
	require.Len(t, events, 2)
	assert.Equal(t, OpUnregistered, events[0].Op)
	assert.Equal(t, "Ledger", events[1].FromProvider)
	assert.Empty(t, events[1].ToProvider)
}

func TestRecordAndListEvents(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordEvents([]*BindingEvent{
		{Op: OpRegistered, Kind: "economy", Owner: "ledger", Provider: "Ledger"},
		{Op: OpRegistered, Kind: "permission", Owner: "group_manager", Provider: "GroupManager"},
		{Op: OpRebound, Kind: "economy", Owner: "ledger", ToProvider: "Ledger"},
	}))
	require.NoError(t, s.RecordEvents(nil))

	all, err := s.ListEvents(&EventQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, OpRebound, all[0].Op, "newest first")
	assert.Equal(t, int64(3), all[0].Seq)
	assert.NotEmpty(t, all[0].ID)
	assert.False(t, all[0].Timestamp.IsZero())

	economy, err := s.ListEvents(&EventQuery{Kind: "economy"})
	require.NoError(t, err)
	assert.Len(t, economy, 2)

	rebinds, err := s.ListEvents(&EventQuery{Op: OpRebound})
	require.NoError(t, err)
	assert.Len(t, rebinds, 1)

	// The underscore must match literally, not as a wildcard.
	byOwner, err := s.ListEvents(&EventQuery{OwnerPrefix: "group_"})
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, "GroupManager", byOwner[0].Provider)

	page, err := s.ListEvents(&EventQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].Seq)

	counts, err := s.CountEvents()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{OpRegistered: 2, OpRebound: 1}, counts)
}

func TestRecorder_WritesInOrderAndDrainsOnStop(t *testing.T) {
	s := newTestStore(t)
	rec := NewRecorder(s, 16)

	reg := services.NewRegistry(services.WithLogger(quietLogger()))
	reg.Subscribe(rec.Observe)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	_, err := reg.Register("ledger", core.OfferEconomy(&testEconomy{name: "Ledger"}, core.PriorityNormal))
	require.NoError(t, err)
	_, err = reg.Register("other", core.OfferEconomy(&testEconomy{name: "Other"}, core.PriorityHigh))
	require.NoError(t, err)
	reg.UnregisterAll("other")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not stop")
	}

	events, err := s.ListEvents(&EventQuery{Op: OpRebound})
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Newest first: Other -> Ledger, Ledger -> Other, none -> Ledger.
	assert.Equal(t, "Ledger", events[0].ToProvider)
	assert.Equal(t, "Other", events[0].FromProvider)
	assert.Equal(t, "Other", events[1].ToProvider)
	assert.Equal(t, "Ledger", events[2].ToProvider)
	assert.Zero(t, rec.Dropped())
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	s := newTestStore(t)
	rec := NewRecorder(s, 1)

	rec.Observe(services.Change{Op: services.OpRegistered})
	rec.Observe(services.Change{Op: services.OpRegistered})

	assert.Equal(t, uint64(1), rec.Dropped())
}
