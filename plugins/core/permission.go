// ABOUTME: Permission capability contract for permission and group providers.
// ABOUTME: An empty world string means the global scope.

package core

// Permission is the contract for permission providers.
type Permission interface {
	Handle

	HasSuperPermsCompat() bool
	HasGroupSupport() bool

	Has(world, player, node string) bool
	PlayerAdd(world, player, node string) bool
	PlayerRemove(world, player, node string) bool

	GroupHas(world, group, node string) bool
	GroupAdd(world, group, node string) bool
	GroupRemove(world, group, node string) bool

	PlayerInGroup(world, player, group string) bool
	PlayerAddGroup(world, player, group string) bool
	PlayerRemoveGroup(world, player, group string) bool
	PlayerGroups(world, player string) []string
	PrimaryGroup(world, player string) string
	Groups() []string
}
