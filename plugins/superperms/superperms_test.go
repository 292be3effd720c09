// ABOUTME: Tests for the in-memory fallback permission provider.
// ABOUTME: Covers world-scoped nodes and the missing group support.

package superperms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/vault/plugins/core"
)

func TestHas_Scopes(t *testing.T) {
	p := NewPermission()

	require.True(t, p.PlayerAdd("", "Notch", "essentials.spawn"))
	require.True(t, p.PlayerAdd("nether", "Notch", "worldedit.*"))
	assert.False(t, p.PlayerAdd("", "Notch", ""))

	tests := []struct {
		world, player, node string
		want                bool
	}{
		{"", "Notch", "essentials.spawn", true},
		{"world", "notch", "ESSENTIALS.SPAWN", true},
		{"nether", "Notch", "worldedit.wand", true},
		{"nether", "Notch", "worldedit.region.set", true},
		{"world", "Notch", "worldedit.wand", false},
		{"", "jeb", "essentials.spawn", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Has(tt.world, tt.player, tt.node), "%s/%s/%s", tt.world, tt.player, tt.node)
	}
}

func TestWildcardAll(t *testing.T) {
	p := NewPermission()
	p.PlayerAdd("", "op", "*")
	assert.True(t, p.Has("any", "op", "anything.at.all"))
}

func TestPlayerRemove(t *testing.T) {
	p := NewPermission()
	p.PlayerAdd("", "Notch", "a.b")

	assert.True(t, p.PlayerRemove("", "Notch", "a.b"))
	assert.False(t, p.PlayerRemove("", "Notch", "a.b"))
	assert.False(t, p.PlayerRemove("world", "ghost", "a.b"))
	assert.False(t, p.Has("", "Notch", "a.b"))
}

func TestNoGroups(t *testing.T) {
	p := NewPermission()

	assert.True(t, p.HasSuperPermsCompat())
	assert.False(t, p.HasGroupSupport())
	assert.False(t, p.GroupAdd("", "admin", "x"))
	assert.False(t, p.PlayerAddGroup("", "Notch", "admin"))
	assert.Empty(t, p.PlayerGroups("", "Notch"))
	assert.Empty(t, p.PrimaryGroup("", "Notch"))
	assert.Empty(t, p.Groups())
}

func TestPluginLifecycle(t *testing.T) {
	plugin := &SuperPermsPlugin{}
	assert.Equal(t, "unavailable", plugin.Health().Status)

	offers, err := plugin.Enable(context.Background(), core.Env{})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, core.KindPermission, offers[0].Kind())
	assert.Equal(t, core.PriorityLowest, offers[0].Priority())

	perm := offers[0].Handle().(core.Permission)
	perm.PlayerAdd("", "b", "x.y")
	perm.PlayerAdd("", "a", "x.z")
	perm.PlayerAdd("world", "a", "x.w")

	rows, err := plugin.ListResources(context.Background(), "players", core.ListOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0]["player"])
	assert.Equal(t, []string{"x.w", "x.z"}, rows[0]["nodes"])

	rows, err = plugin.ListResources(context.Background(), "players", core.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0]["player"])

	_, err = plugin.ListResources(context.Background(), "groups", core.ListOptions{})
	assert.Error(t, err)

	require.NoError(t, plugin.Disable(context.Background()))
	assert.False(t, perm.IsEnabled())
	_, err = plugin.ListResources(context.Background(), "players", core.ListOptions{})
	assert.Error(t, err)
}
