// ABOUTME: ChatMeta plugin: prefixes, suffixes, and info nodes in SQLite.
// ABOUTME: Offers a chat provider at normal priority.

package chatmeta

import (
	"context"
	"fmt"
	"sync"

	"github.com/2389/vault/plugins/core"
)

func init() {
	core.Register(&ChatMetaPlugin{})
}

type ChatMetaPlugin struct {
	mu    sync.Mutex
	store *ChatMetaStore
	chat  *Chat
}

func (p *ChatMetaPlugin) Manifest() core.Manifest {
	return core.Manifest{
		Name:          "chatmeta",
		Version:       "0.9.2",
		Description:   "Chat prefixes and suffixes resolved through the bound permission provider",
		APIConstraint: ">= 1.7, < 2",
	}
}

func (p *ChatMetaPlugin) Health() core.HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chat == nil {
		return core.HealthStatus{Status: "unavailable", Message: "ChatMeta not enabled"}
	}
	if _, ok := p.chat.permission(); !ok {
		return core.HealthStatus{Status: "degraded", Message: "No permission provider bound; group metadata unavailable"}
	}
	return core.HealthStatus{Status: "healthy", Message: "ChatMeta operational"}
}

func (p *ChatMetaPlugin) Enable(ctx context.Context, env core.Env) ([]core.Offer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	store, err := NewChatMetaStore(env.DB)
	if err != nil {
		return nil, fmt.Errorf("chatmeta store: %w", err)
	}
	p.store = store
	p.chat = NewChat(store, env.Permission, env.Logger)
	return []core.Offer{core.OfferChat(p.chat, core.PriorityNormal)}, nil
}

func (p *ChatMetaPlugin) Disable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chat != nil {
		p.chat.enabled.Store(false)
	}
	p.chat = nil
	return nil
}

// ListResources implements core.DataProvider for the admin UI.
func (p *ChatMetaPlugin) ListResources(ctx context.Context, slug string, opts core.ListOptions) ([]map[string]any, error) {
	p.mu.Lock()
	store := p.store
	p.mu.Unlock()
	if store == nil {
		return nil, fmt.Errorf("chatmeta not enabled")
	}

	var subject string
	switch slug {
	case "players":
		subject = subjectPlayer
	case "groups":
		subject = subjectGroup
	default:
		return nil, fmt.Errorf("unknown resource: %s", slug)
	}

	entries, err := store.List(subject, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]any{
			"name":  e.Name,
			"world": e.World,
			"node":  e.Node,
			"value": e.Value,
		})
	}
	return rows, nil
}

func (p *ChatMetaPlugin) Schema() core.PluginSchema {
	fields := []core.FieldSchema{
		{Name: "name", Type: "string", Display: "Name"},
		{Name: "world", Type: "string", Display: "World"},
		{Name: "node", Type: "string", Display: "Node"},
		{Name: "value", Type: "string", Display: "Value"},
	}
	columns := []string{"name", "world", "node", "value"}
	return core.PluginSchema{
		Resources: []core.ResourceSchema{
			{Name: "Players", Slug: "players", Fields: fields, ListColumns: columns},
			{Name: "Groups", Slug: "groups", Fields: fields, ListColumns: columns},
		},
	}
}
