// ABOUTME: Static fallback players when OpenAI is not available.
// ABOUTME: Cycles a fixed roster and numbers repeats so names stay unique.

package seed

import "fmt"

var staticPlayers = []PlayerData{
	{Name: "Notch_Fan", Balance: 1250, Group: "admin", Prefix: "[Admin] ", Permissions: []string{"essentials.*"}},
	{Name: "CreeperQueen", Balance: 430.5, Group: "moderator", Prefix: "[Mod] ", Permissions: []string{"essentials.kick", "essentials.mute"}},
	{Name: "DiamondDigger", Balance: 3020.75, Group: "builder", Prefix: "[VIP] ", Permissions: []string{"worldedit.wand"}},
	{Name: "redstone_rick", Balance: 88, Group: "builder", Permissions: []string{"worldedit.selection.pos"}},
	{Name: "LavaSurfer", Balance: 12.25, Permissions: []string{"essentials.home"}},
	{Name: "moss_maker", Balance: 0},
	{Name: "EnderWatcher", Balance: 640, Group: "moderator", Prefix: "[Mod] ", Permissions: []string{"essentials.tp"}},
	{Name: "PixelPaws", Balance: 205.4, Prefix: "[New] ", Permissions: []string{"essentials.spawn"}},
	{Name: "GhastBuster", Balance: 999.99, Group: "builder", Permissions: []string{"essentials.home", "essentials.sethome"}},
	{Name: "quartz_quill", Balance: 57},
}

// generateStaticPlayers returns count players. When groups is non-empty,
// players are spread across those groups instead of the roster's own.
func generateStaticPlayers(count int, groups []string) []PlayerData {
	result := make([]PlayerData, count)
	for i := 0; i < count; i++ {
		p := staticPlayers[i%len(staticPlayers)]
		p.Permissions = append([]string(nil), p.Permissions...)
		if i >= len(staticPlayers) {
			p.Name = fmt.Sprintf("%s%d", p.Name, i/len(staticPlayers)+1)
		}
		if len(groups) > 0 {
			p.Group = groups[i%len(groups)]
		}
		result[i] = p
	}
	return result
}
