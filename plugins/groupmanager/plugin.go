// ABOUTME: GroupManager plugin: YAML-backed groups and users.
// ABOUTME: Offers a group-aware permission provider at high priority.

package groupmanager

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/2389/vault/plugins/core"
)

func init() {
	core.Register(&GroupManagerPlugin{})
}

type GroupManagerPlugin struct {
	mu    sync.Mutex
	perm  *Permission
	store *FileStore
}

func (p *GroupManagerPlugin) Manifest() core.Manifest {
	return core.Manifest{
		Name:          "groupmanager",
		Version:       "2.1.0",
		Description:   "File-backed permission groups with inheritance",
		APIConstraint: "^1.5",
	}
}

func (p *GroupManagerPlugin) Health() core.HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.perm == nil {
		return core.HealthStatus{Status: "unavailable", Message: "GroupManager not enabled"}
	}
	return core.HealthStatus{
		Status:  "healthy",
		Message: fmt.Sprintf("GroupManager serving %s", p.store.Path()),
	}
}

func (p *GroupManagerPlugin) Enable(ctx context.Context, env core.Env) ([]core.Offer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if env.GroupsFile == "" {
		return nil, fmt.Errorf("groupmanager requires a groups file")
	}
	store := NewFileStore(env.GroupsFile)
	doc, err := store.Load()
	if err != nil {
		return nil, err
	}
	p.store = store
	p.perm = NewPermission(doc, store, env.Logger)
	return []core.Offer{core.OfferPermission(p.perm, core.PriorityHigh)}, nil
}

func (p *GroupManagerPlugin) Disable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.perm == nil {
		return nil
	}
	p.perm.enabled.Store(false)
	p.perm.mu.RLock()
	err := p.store.Save(p.perm.doc)
	p.perm.mu.RUnlock()
	p.perm = nil
	return err
}

// ListResources implements core.DataProvider for the admin UI.
func (p *GroupManagerPlugin) ListResources(ctx context.Context, slug string, opts core.ListOptions) ([]map[string]any, error) {
	p.mu.Lock()
	perm := p.perm
	p.mu.Unlock()
	if perm == nil {
		return nil, fmt.Errorf("groupmanager not enabled")
	}

	users, groups := perm.snapshot()
	var rows []map[string]any
	switch slug {
	case "groups":
		for _, name := range sortedKeys(groups) {
			g := groups[name]
			rows = append(rows, map[string]any{
				"name":        name,
				"default":     g.Default,
				"inherits":    strings.Join(g.Inherits, ", "),
				"permissions": len(g.Permissions),
			})
		}
	case "users":
		for _, name := range sortedKeys(users) {
			u := users[name]
			rows = append(rows, map[string]any{
				"player":      name,
				"group":       u.Group,
				"subgroups":   strings.Join(u.Subgroups, ", "),
				"permissions": len(u.Permissions),
			})
		}
	default:
		return nil, fmt.Errorf("unknown resource: %s", slug)
	}
	return core.Page(rows, opts), nil
}

func (p *GroupManagerPlugin) Schema() core.PluginSchema {
	return core.PluginSchema{
		Resources: []core.ResourceSchema{
			{
				Name:        "Groups",
				Slug:        "groups",
				ListColumns: []string{"name", "default", "inherits", "permissions"},
				Fields: []core.FieldSchema{
					{Name: "name", Type: "string", Display: "Name"},
					{Name: "default", Type: "bool", Display: "Default"},
					{Name: "inherits", Type: "string", Display: "Inherits"},
					{Name: "permissions", Type: "number", Display: "Nodes"},
				},
			},
			{
				Name:        "Users",
				Slug:        "users",
				ListColumns: []string{"player", "group", "subgroups", "permissions"},
				Fields: []core.FieldSchema{
					{Name: "player", Type: "string", Display: "Player"},
					{Name: "group", Type: "string", Display: "Group"},
					{Name: "subgroups", Type: "string", Display: "Subgroups"},
					{Name: "permissions", Type: "number", Display: "Nodes"},
				},
			},
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
