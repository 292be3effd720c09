// ABOUTME: SuperPerms plugin: the host's built-in permission fallback.
// ABOUTME: Offers its provider at the lowest priority so any real plugin outranks it.

package superperms

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/2389/vault/plugins/core"
)

func init() {
	core.Register(&SuperPermsPlugin{})
}

type SuperPermsPlugin struct {
	mu   sync.Mutex
	perm *Permission
}

func (p *SuperPermsPlugin) Manifest() core.Manifest {
	return core.Manifest{
		Name:        "superperms",
		Version:     "1.0.0",
		Description: "Built-in permission fallback without groups",
	}
}

func (p *SuperPermsPlugin) Health() core.HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.perm == nil {
		return core.HealthStatus{Status: "unavailable", Message: "SuperPerms not enabled"}
	}
	return core.HealthStatus{Status: "healthy", Message: "SuperPerms operational"}
}

func (p *SuperPermsPlugin) Enable(ctx context.Context, env core.Env) ([]core.Offer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.perm = NewPermission()
	return []core.Offer{core.OfferPermission(p.perm, core.PriorityLowest)}, nil
}

func (p *SuperPermsPlugin) Disable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.perm != nil {
		p.perm.enabled.Store(false)
	}
	p.perm = nil
	return nil
}

// ListResources implements core.DataProvider for the admin UI.
func (p *SuperPermsPlugin) ListResources(ctx context.Context, slug string, opts core.ListOptions) ([]map[string]any, error) {
	p.mu.Lock()
	perm := p.perm
	p.mu.Unlock()
	if perm == nil {
		return nil, fmt.Errorf("superperms not enabled")
	}
	if slug != "players" {
		return nil, fmt.Errorf("unknown resource: %s", slug)
	}

	players := perm.Players()
	names := make([]string, 0, len(players))
	for name := range players {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]map[string]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, map[string]any{"player": name, "nodes": players[name]})
	}
	return core.Page(rows, opts), nil
}

func (p *SuperPermsPlugin) Schema() core.PluginSchema {
	return core.PluginSchema{
		Resources: []core.ResourceSchema{
			{
				Name:        "Players",
				Slug:        "players",
				ListColumns: []string{"player", "nodes"},
				Fields: []core.FieldSchema{
					{Name: "player", Type: "string", Display: "Player"},
					{Name: "nodes", Type: "list", Display: "Nodes"},
				},
			},
		},
	}
}
