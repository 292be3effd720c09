// ABOUTME: Chat capability contract for prefix, suffix, and info metadata.
// ABOUTME: Chat providers resolve group membership through a Permission provider.

package core

// Chat is the contract for chat formatting providers.
type Chat interface {
	Handle

	PlayerPrefix(world, player string) string
	SetPlayerPrefix(world, player, prefix string)
	PlayerSuffix(world, player string) string
	SetPlayerSuffix(world, player, suffix string)

	GroupPrefix(world, group string) string
	SetGroupPrefix(world, group, prefix string)
	GroupSuffix(world, group string) string
	SetGroupSuffix(world, group, suffix string)

	PlayerInfo(world, player, node, def string) string
	SetPlayerInfo(world, player, node, value string)
	GroupInfo(world, group, node, def string) string
	SetGroupInfo(world, group, node, value string)
}
