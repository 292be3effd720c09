// ABOUTME: In-memory permission provider without group support.
// ABOUTME: Used as the fallback binding when no real permission plugin is enabled.

package superperms

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Permission keeps per-world player nodes in memory. The empty world is the
// global scope and applies in every world.
type Permission struct {
	mu      sync.RWMutex
	nodes   map[string]map[string]map[string]bool // world -> player -> node
	enabled atomic.Bool
}

func NewPermission() *Permission {
	p := &Permission{nodes: make(map[string]map[string]map[string]bool)}
	p.enabled.Store(true)
	return p
}

func (p *Permission) Name() string { return "SuperPerms" }

func (p *Permission) IsEnabled() bool { return p.enabled.Load() }

func (p *Permission) HasSuperPermsCompat() bool { return true }

func (p *Permission) HasGroupSupport() bool { return false }

// Has checks the world scope first, then the global scope. A node matches
// exactly, through a "prefix.*" wildcard, or through "*".
func (p *Permission) Has(world, player, node string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	player = strings.ToLower(player)
	node = strings.ToLower(node)
	for _, scope := range scopes(world) {
		if matches(p.nodes[scope][player], node) {
			return true
		}
	}
	return false
}

func (p *Permission) PlayerAdd(world, player, node string) bool {
	if node == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	player = strings.ToLower(player)
	players, ok := p.nodes[world]
	if !ok {
		players = make(map[string]map[string]bool)
		p.nodes[world] = players
	}
	set, ok := players[player]
	if !ok {
		set = make(map[string]bool)
		players[player] = set
	}
	set[strings.ToLower(node)] = true
	return true
}

func (p *Permission) PlayerRemove(world, player, node string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := p.nodes[world][strings.ToLower(player)]
	node = strings.ToLower(node)
	if !set[node] {
		return false
	}
	delete(set, node)
	return true
}

func (p *Permission) GroupHas(world, group, node string) bool            { return false }
func (p *Permission) GroupAdd(world, group, node string) bool            { return false }
func (p *Permission) GroupRemove(world, group, node string) bool         { return false }
func (p *Permission) PlayerInGroup(world, player, group string) bool     { return false }
func (p *Permission) PlayerAddGroup(world, player, group string) bool    { return false }
func (p *Permission) PlayerRemoveGroup(world, player, group string) bool { return false }
func (p *Permission) PlayerGroups(world, player string) []string         { return nil }
func (p *Permission) PrimaryGroup(world, player string) string           { return "" }
func (p *Permission) Groups() []string                                   { return nil }

// Players lists every player holding at least one node, for the admin view.
func (p *Permission) Players() map[string][]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string][]string)
	for _, players := range p.nodes {
		for player, set := range players {
			for node := range set {
				out[player] = append(out[player], node)
			}
		}
	}
	for player := range out {
		sort.Strings(out[player])
	}
	return out
}

func scopes(world string) []string {
	if world == "" {
		return []string{""}
	}
	return []string{world, ""}
}

func matches(set map[string]bool, node string) bool {
	if len(set) == 0 {
		return false
	}
	if set[node] || set["*"] {
		return true
	}
	for i := strings.LastIndex(node, "."); i > 0; i = strings.LastIndex(node[:i], ".") {
		if set[node[:i]+".*"] {
			return true
		}
	}
	return false
}
