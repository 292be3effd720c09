// ABOUTME: Writes generated players through the currently bound providers.
// ABOUTME: Each capability is optional; unbound kinds are skipped.

package seed

import (
	"context"
	"slices"

	"github.com/2389/vault/plugins/core"
)

// Target resolves the bound provider for each capability. *vault.Vault
// satisfies it.
type Target interface {
	Economy() (core.Economy, bool)
	Permission() (core.Permission, bool)
	Chat() (core.Chat, bool)
}

// Summary counts what Apply wrote.
type Summary struct {
	Players     int
	Accounts    int
	Deposited   float64
	Permissions int
	Groups      int
	Prefixes    int
	// Failed names the players whose deposit was refused.
	Failed []string
}

// Apply seeds every player into the bound economy, permission, and chat
// providers. Providers are resolved once, before the first player.
func Apply(ctx context.Context, t Target, data *Data) (Summary, error) {
	var sum Summary
	econ, hasEcon := t.Economy()
	perm, hasPerm := t.Permission()
	chat, hasChat := t.Chat()

	var groups []string
	if hasPerm && perm.HasGroupSupport() {
		groups = perm.Groups()
	}

	for _, p := range data.Players {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Players++

		if hasEcon {
			if !econ.HasAccount(p.Name) && econ.CreateAccount(p.Name) {
				sum.Accounts++
			}
			if p.Balance > 0 {
				if resp := econ.Deposit(p.Name, p.Balance); resp.Success() {
					sum.Deposited += p.Balance
				} else {
					sum.Failed = append(sum.Failed, p.Name)
				}
			}
		}

		if hasPerm {
			for _, node := range p.Permissions {
				if perm.PlayerAdd("", p.Name, node) {
					sum.Permissions++
				}
			}
			if p.Group != "" && slices.Contains(groups, p.Group) && perm.PlayerAddGroup("", p.Name, p.Group) {
				sum.Groups++
			}
		}

		if hasChat && p.Prefix != "" {
			chat.SetPlayerPrefix("", p.Name, p.Prefix)
			sum.Prefixes++
		}
	}
	return sum, nil
}
