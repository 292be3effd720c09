// ABOUTME: Ledger plugin: a SQLite-backed economy with bank support.
// ABOUTME: Offers one economy provider at normal priority when enabled.

package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/2389/vault/plugins/core"
)

func init() {
	core.Register(&LedgerPlugin{})
}

// StartBalance is what a new account holds.
const StartBalance = 0

type LedgerPlugin struct {
	mu      sync.Mutex
	store   *LedgerStore
	economy *Economy
}

func (p *LedgerPlugin) Manifest() core.Manifest {
	return core.Manifest{
		Name:          "ledger",
		Version:       "1.2.0",
		Description:   "SQLite economy with banks",
		APIConstraint: ">= 1.4",
	}
}

func (p *LedgerPlugin) Health() core.HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.economy == nil || !p.economy.IsEnabled() {
		return core.HealthStatus{Status: "unavailable", Message: "Ledger not enabled"}
	}
	if err := p.store.db.Ping(); err != nil {
		return core.HealthStatus{Status: "degraded", Message: err.Error()}
	}
	return core.HealthStatus{Status: "healthy", Message: "Ledger economy operational"}
}

func (p *LedgerPlugin) Enable(ctx context.Context, env core.Env) ([]core.Offer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	store, err := NewLedgerStore(env.DB)
	if err != nil {
		return nil, fmt.Errorf("ledger store: %w", err)
	}
	p.store = store
	p.economy = NewEconomy(store, env.Logger, StartBalance)
	return []core.Offer{core.OfferEconomy(p.economy, core.PriorityNormal)}, nil
}

func (p *LedgerPlugin) Disable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.economy != nil {
		p.economy.enabled.Store(false)
	}
	p.economy = nil
	return nil
}

// ListResources implements core.DataProvider for the admin UI.
func (p *LedgerPlugin) ListResources(ctx context.Context, slug string, opts core.ListOptions) ([]map[string]any, error) {
	p.mu.Lock()
	store := p.store
	p.mu.Unlock()
	if store == nil {
		return nil, fmt.Errorf("ledger not enabled")
	}

	switch slug {
	case "accounts":
		accounts, err := store.ListAccounts(opts.Limit, opts.Offset)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(accounts))
		for _, a := range accounts {
			out = append(out, map[string]any{"player": a.Player, "balance": a.Balance})
		}
		return out, nil
	case "banks":
		banks, err := store.ListBanks(opts.Limit, opts.Offset)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(banks))
		for _, b := range banks {
			out = append(out, map[string]any{"name": b.Name, "owner": b.Owner, "balance": b.Balance})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown resource: %s", slug)
	}
}

func (p *LedgerPlugin) Schema() core.PluginSchema {
	return core.PluginSchema{
		Resources: []core.ResourceSchema{
			{
				Name:        "Accounts",
				Slug:        "accounts",
				ListColumns: []string{"player", "balance"},
				Fields: []core.FieldSchema{
					{Name: "player", Type: "string", Display: "Player"},
					{Name: "balance", Type: "number", Display: "Balance"},
				},
			},
			{
				Name:        "Banks",
				Slug:        "banks",
				ListColumns: []string{"name", "owner", "balance"},
				Fields: []core.FieldSchema{
					{Name: "name", Type: "string", Display: "Name"},
					{Name: "owner", Type: "string", Display: "Owner"},
					{Name: "balance", Type: "number", Display: "Balance"},
				},
			},
		},
	}
}
